// Package fields extracts labeled document fields from OCR text.
package fields

import (
	"log/slog"
	"unicode/utf8"

	"github.com/joseph-ayodele/receptro/internal/patterns"
)

// Result is one extraction outcome. Fields holds only fields that were found.
type Result struct {
	Fields     map[string]string `json:"extracted_fields"`
	FieldCount int               `json:"field_count"`
	Rules      map[string]string `json:"rules,omitempty"` // field -> rule ID that produced it
}

// Extractor is stateless beyond its rules and safe for concurrent use.
type Extractor struct {
	rules  []patterns.FieldRule
	logger *slog.Logger
}

func NewExtractor(lib *patterns.Library, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{rules: lib.FieldRules(), logger: logger}
}

// Extract searches the full text once per field rule. The first rule to produce
// a usable value for a field owns it; within a rule the earliest match wins.
// It never fails: no match is an empty result.
func (e *Extractor) Extract(text string) Result {
	res := Result{Fields: map[string]string{}, Rules: map[string]string{}}
	if text == "" {
		return res
	}

	for _, rule := range e.rules {
		if _, set := res.Fields[rule.Field]; set {
			continue
		}
		raw, ok := rule.Find(text)
		if !ok {
			continue
		}
		value := Normalize(rule.Type, raw)
		if value == "" || utf8.RuneCountInString(value) < rule.MinLength {
			e.logger.Debug("field value rejected", "rule", rule.ID, "raw", raw)
			continue
		}
		res.Fields[rule.Field] = value
		res.Rules[rule.Field] = rule.ID
	}
	res.FieldCount = len(res.Fields)
	return res
}
