package patterns

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseConfig decodes a YAML (or JSON) rules document after validating its
// shape against ConfigJSONSchema.
func ParseConfig(data []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, &RuleError{Table: "config", Reason: "parse rules document", Err: err}
	}
	if doc == nil {
		return Config{}, &RuleError{Table: "config", Reason: "rules document is empty"}
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return Config{}, &RuleError{Table: "config", Reason: "rules document is not JSON-compatible", Err: err}
	}
	if err := ValidateJSONAgainstSchema(ConfigJSONSchema(), asJSON); err != nil {
		return Config{}, &RuleError{Table: "config", Reason: "schema validation", Err: err}
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &RuleError{Table: "config", Reason: "decode rules document", Err: err}
	}
	return cfg, nil
}

// LoadFile reads, validates and compiles the rules file at path.
func LoadFile(path string) (*Library, error) {
	cfg, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}
	return Load(cfg)
}

// ReadConfigFile reads and parses the rules file at path without compiling it.
func ReadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return cfg, nil
}

// MarshalYAML renders cfg as a rules document.
func MarshalYAML(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
