package patterns

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ConfigJSONSchema returns the JSON-Schema (draft 2020-12 subset) a rules file must satisfy.
func ConfigJSONSchema() map[string]any {
	param := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "pattern"},
		"properties": map[string]any{
			"name":    map[string]any{"type": "string", "minLength": 1},
			"pattern": map[string]any{"type": "string", "minLength": 1},
			"group":   groupProp(),
		},
	}

	common := func() map[string]any {
		return map[string]any{
			"id":             map[string]any{"type": "string"},
			"name":           map[string]any{"type": "string", "minLength": 1},
			"pattern":        map[string]any{"type": "string", "minLength": 1},
			"case_sensitive": map[string]any{"type": "boolean"},
			"priority":       map[string]any{"type": "integer"},
		}
	}

	intentProps := common()
	intentProps["confidence"] = map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
	intentProps["params"] = map[string]any{"type": "array", "items": param}

	fieldProps := common()
	fieldProps["group"] = groupProp()
	fieldProps["type"] = map[string]any{
		"type": "string",
		"enum": []string{string(ValueText), string(ValueDate), string(ValuePhone), string(ValueName), string(ValueEmail), string(ValueID)},
	}
	fieldProps["min_length"] = map[string]any{"type": "integer", "minimum": 0}

	rule := func(props map[string]any) map[string]any {
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"name", "pattern"},
			"properties":           props,
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"intent_rules":         map[string]any{"type": "array", "items": rule(intentProps)},
			"field_rules":          map[string]any{"type": "array", "items": rule(fieldProps)},
			"confidence_threshold": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"responses": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	}
}

// group may be an index or a capture-group name
func groupProp() map[string]any {
	return map[string]any{
		"oneOf": []any{
			map[string]any{"type": "string"},
			map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules.schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("rules do not match schema: %w", err)
	}
	return nil
}
