package patterns

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultConfidenceThreshold applies when Config.ConfidenceThreshold is nil.
const DefaultConfidenceThreshold = 0.5

// DefaultRuleConfidence applies to intent rules that leave Confidence unset.
const DefaultRuleConfidence = 0.6

// ValueType selects how a field rule's captured value is normalized.
type ValueType string

const (
	ValueText  ValueType = "text"
	ValueDate  ValueType = "date"
	ValuePhone ValueType = "phone"
	ValueName  ValueType = "name"
	ValueEmail ValueType = "email"
	ValueID    ValueType = "id"
)

var valueTypes = map[ValueType]struct{}{
	ValueText: {}, ValueDate: {}, ValuePhone: {}, ValueName: {}, ValueEmail: {}, ValueID: {},
}

// ParamRule extracts one named parameter for an intent rule.
type ParamRule struct {
	Name    string `yaml:"name" json:"name"`
	Pattern string `yaml:"pattern" json:"pattern"`
	// Group is the capture group holding the value: an index ("1") or a group
	// name. Empty means group 1, or the whole match when the pattern has none.
	Group string `yaml:"group,omitempty" json:"group,omitempty"`
}

// Rule is one row of an intent or field table.
type Rule struct {
	ID            string `yaml:"id,omitempty" json:"id,omitempty"`
	Name          string `yaml:"name" json:"name"`
	Pattern       string `yaml:"pattern" json:"pattern"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	// Priority reorders rules: higher runs first, equal priorities keep
	// declaration order.
	Priority int `yaml:"priority,omitempty" json:"priority,omitempty"`

	// intent rules; a nil Confidence gets DefaultRuleConfidence, an explicit 0 is kept
	Confidence *float64    `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	Params     []ParamRule `yaml:"params,omitempty" json:"params,omitempty"`

	// field rules
	Group     string    `yaml:"group,omitempty" json:"group,omitempty"`
	Type      ValueType `yaml:"type,omitempty" json:"type,omitempty"`
	MinLength int       `yaml:"min_length,omitempty" json:"min_length,omitempty"`
}

// Config enumerates everything a Library is built from.
type Config struct {
	IntentRules         []Rule            `yaml:"intent_rules" json:"intent_rules"`
	FieldRules          []Rule            `yaml:"field_rules" json:"field_rules"`
	ConfidenceThreshold *float64          `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty"`
	Responses           map[string]string `yaml:"responses,omitempty" json:"responses,omitempty"`
}

// Threshold returns the configured threshold or the default.
func (c Config) Threshold() float64 {
	if c.ConfidenceThreshold == nil {
		return DefaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// Weight returns a pointer to c for Rule.Confidence literals.
func Weight(c float64) *float64 { return &c }

// WithThreshold returns a copy of c using threshold t.
func (c Config) WithThreshold(t float64) Config {
	c.ConfidenceThreshold = &t
	return c
}

// ErrInvalidRuleDefinition is matched by every error Load reports for a bad table.
var ErrInvalidRuleDefinition = errors.New("invalid rule definition")

// RuleError locates a bad rule.
type RuleError struct {
	Table  string // "intent_rules", "field_rules", "responses", "config"
	Index  int
	Rule   string
	Reason string
	Err    error
}

func (e *RuleError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalidRuleDefinition.Error())
	if e.Table != "" {
		fmt.Fprintf(&b, ": %s[%d]", e.Table, e.Index)
	}
	if e.Rule != "" {
		fmt.Fprintf(&b, " %q", e.Rule)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RuleError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidRuleDefinition}
	}
	return []error{ErrInvalidRuleDefinition, e.Err}
}
