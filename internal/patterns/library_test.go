package patterns

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoads(t *testing.T) {
	lib, err := Load(Default())
	require.NoError(t, err)

	assert.Equal(t, DefaultConfidenceThreshold, lib.Threshold())
	assert.NotEmpty(t, lib.IntentRules())
	assert.NotEmpty(t, lib.FieldRules())

	for _, r := range lib.IntentRules() {
		assert.GreaterOrEqual(t, r.Confidence, 0.0, r.ID)
		assert.LessOrEqual(t, r.Confidence, 1.0, r.ID)
	}
}

func TestLoadAssignsIDsInDeclarationOrder(t *testing.T) {
	lib, err := Load(Config{
		IntentRules: []Rule{
			{Name: "greet", Pattern: `hello`},
			{Name: "greet", Pattern: `hi`},
			{Name: "bye", Pattern: `bye`, ID: "farewell"},
		},
	})
	require.NoError(t, err)

	rules := lib.IntentRules()
	require.Len(t, rules, 3)
	assert.Equal(t, "greet#1", rules[0].ID)
	assert.Equal(t, "greet#2", rules[1].ID)
	assert.Equal(t, "farewell", rules[2].ID)
	assert.Equal(t, DefaultRuleConfidence, rules[0].Confidence)
}

func TestLoadPriorityIsStable(t *testing.T) {
	lib, err := Load(Config{
		IntentRules: []Rule{
			{Name: "a", Pattern: `a`},
			{Name: "b", Pattern: `b`, Priority: 10},
			{Name: "c", Pattern: `c`},
			{Name: "d", Pattern: `d`, Priority: 10},
		},
	})
	require.NoError(t, err)

	var order []string
	for _, r := range lib.IntentRules() {
		order = append(order, r.Intent)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, order)
}

func TestLoadRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad intent pattern", Config{IntentRules: []Rule{{Name: "x", Pattern: `(unclosed`}}}},
		{"empty pattern", Config{IntentRules: []Rule{{Name: "x", Pattern: "  "}}}},
		{"missing name", Config{FieldRules: []Rule{{Pattern: `x`}}}},
		{"reserved intent", Config{IntentRules: []Rule{{Name: "unknown", Pattern: `x`}}}},
		{"confidence above one", Config{IntentRules: []Rule{{Name: "x", Pattern: `x`, Confidence: Weight(1.5)}}}},
		{"param group index undefined", Config{IntentRules: []Rule{{Name: "x", Pattern: `x`, Params: []ParamRule{{Name: "p", Pattern: `(a)`, Group: "2"}}}}}},
		{"param group name undefined", Config{IntentRules: []Rule{{Name: "x", Pattern: `x`, Params: []ParamRule{{Name: "p", Pattern: `(?P<when>a)`, Group: "where"}}}}}},
		{"duplicate param", Config{IntentRules: []Rule{{Name: "x", Pattern: `x`, Params: []ParamRule{{Name: "p", Pattern: `a`}, {Name: "p", Pattern: `b`}}}}}},
		{"field group undefined", Config{FieldRules: []Rule{{Name: "f", Pattern: `abc`, Group: "1"}}}},
		{"unknown value type", Config{FieldRules: []Rule{{Name: "f", Pattern: `(a)`, Type: "money"}}}},
		{"duplicate id", Config{FieldRules: []Rule{{Name: "f", Pattern: `a`, ID: "dup"}, {Name: "g", Pattern: `b`, ID: "dup"}}}},
		{"threshold out of range", Config{}.WithThreshold(-0.1)},
		{"bad reply template", Config{Responses: map[string]string{"x": "{{.Parameters"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, err := Load(tt.cfg)
			assert.Nil(t, lib)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRuleDefinition), "got %v", err)

			var re *RuleError
			assert.True(t, errors.As(err, &re))
		})
	}
}

func TestLoadResolvesNamedGroups(t *testing.T) {
	lib, err := Load(Config{
		IntentRules: []Rule{{
			Name:    "order",
			Pattern: `order`,
			Params:  []ParamRule{{Name: "qty", Pattern: `(?P<count>\d+)\s+(?P<item>\w+)`, Group: "item"}},
		}},
	})
	require.NoError(t, err)

	p := lib.IntentRules()[0].Params[0]
	v, ok := p.Find("please order 3 pizzas")
	require.True(t, ok)
	assert.Equal(t, "pizzas", v)
}

func TestFieldRuleWholeMatchWithoutGroups(t *testing.T) {
	lib, err := Load(Config{FieldRules: []Rule{{Name: "code", Pattern: `[A-Z]{3}-\d{3}`, CaseSensitive: true}}})
	require.NoError(t, err)

	v, ok := lib.FieldRules()[0].Find("ref ABC-123 and XYZ-999")
	require.True(t, ok)
	assert.Equal(t, "ABC-123", v)
}

func TestReplyFallsBackToUnknown(t *testing.T) {
	lib := MustLoad(Default())

	reply, err := lib.Reply(ReplyData{Intent: "book_appointment", Parameters: map[string]string{"date": "Monday", "time": "2 PM"}})
	require.NoError(t, err)
	assert.Equal(t, "Okay, I've booked your appointment for Monday at 2 PM.", reply)

	reply, err = lib.Reply(ReplyData{Intent: "book_appointment"})
	require.NoError(t, err)
	assert.Equal(t, "Okay, I've booked your appointment.", reply)

	reply, err = lib.Reply(ReplyData{Intent: "no_such_intent"})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)

	empty := MustLoad(Config{})
	reply, err = empty.Reply(ReplyData{Intent: "anything"})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)
}

func TestRulesFileRoundTrip(t *testing.T) {
	data, err := MarshalYAML(Default().WithThreshold(0.7))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	lib, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, lib.Threshold())
	assert.Len(t, lib.IntentRules(), len(Default().IntentRules))
	assert.Len(t, lib.FieldRules(), len(Default().FieldRules))
}

func TestParseConfigSchemaViolations(t *testing.T) {
	tests := map[string]string{
		"unknown top-level key": "intent_rules: []\nextra: 1\n",
		"threshold too high":    "confidence_threshold: 2\n",
		"rule without pattern":  "intent_rules:\n  - name: greet\n",
		"bad value type":        "field_rules:\n  - name: f\n    pattern: x\n    type: money\n",
		"empty document":        "",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRuleDefinition)
		})
	}
}

func TestParseConfigAcceptsIntegerGroup(t *testing.T) {
	doc := `
confidence_threshold: 0.4
intent_rules:
  - name: order
    pattern: order
    confidence: 0.9
    params:
      - name: qty
        pattern: '(\d+) (\w+)'
        group: 1
responses:
  order: "Ordering {{.Parameters.qty}}."
`
	cfg, err := ParseConfig([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.IntentRules, 1)
	assert.Equal(t, "1", cfg.IntentRules[0].Params[0].Group)
	assert.Equal(t, 0.4, cfg.Threshold())

	lib, err := Load(cfg)
	require.NoError(t, err)
	reply, err := lib.Reply(ReplyData{Intent: "order", Parameters: map[string]string{"qty": "3"}})
	require.NoError(t, err)
	assert.Equal(t, "Ordering 3.", reply)
}

func TestExplicitZeroConfidenceIsKept(t *testing.T) {
	cfg, err := ParseConfig([]byte("intent_rules:\n  - name: muted\n    pattern: hello\n    confidence: 0\n  - name: plain\n    pattern: bye\n"))
	require.NoError(t, err)
	require.Len(t, cfg.IntentRules, 2)
	require.NotNil(t, cfg.IntentRules[0].Confidence)
	assert.Nil(t, cfg.IntentRules[1].Confidence)

	lib, err := Load(cfg)
	require.NoError(t, err)
	rules := lib.IntentRules()
	assert.Equal(t, 0.0, rules[0].Confidence)
	assert.Equal(t, DefaultRuleConfidence, rules[1].Confidence)
	assert.Less(t, rules[0].Confidence, lib.Threshold())
}
