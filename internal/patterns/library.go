package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/joseph-ayodele/receptro/constants"
)

const fallbackReply = "I'm not sure how to help with that, but I'm here to assist you."

// Param is a compiled ParamRule.
type Param struct {
	Name  string
	re    *regexp.Regexp
	group int
}

// Find returns the first value the parameter pattern yields in text.
func (p Param) Find(text string) (string, bool) {
	return findGroup(p.re, p.group, text)
}

// IntentRule is a compiled intent rule.
type IntentRule struct {
	ID         string
	Intent     string
	Confidence float64
	Priority   int
	Params     []Param
	match      *regexp.Regexp
}

// Matches reports whether the rule's pattern matches text.
func (r IntentRule) Matches(text string) bool {
	return r.match.MatchString(text)
}

// FieldRule is a compiled field rule.
type FieldRule struct {
	ID        string
	Field     string
	Type      ValueType
	MinLength int
	Priority  int
	re        *regexp.Regexp
	group     int
}

// Find returns the captured value of the first match by text position.
func (r FieldRule) Find(text string) (string, bool) {
	return findGroup(r.re, r.group, text)
}

// Library is the immutable, compiled rule set. Safe for concurrent use.
type Library struct {
	intents   []IntentRule
	fields    []FieldRule
	threshold float64
	replies   map[string]*template.Template
}

// Load validates and compiles cfg.
func Load(cfg Config) (*Library, error) {
	threshold := cfg.Threshold()
	if threshold < 0 || threshold > 1 {
		return nil, &RuleError{Table: "config", Reason: fmt.Sprintf("confidence_threshold %v outside [0,1]", threshold)}
	}

	intents, err := compileIntentRules(cfg.IntentRules)
	if err != nil {
		return nil, err
	}
	fields, err := compileFieldRules(cfg.FieldRules)
	if err != nil {
		return nil, err
	}
	replies, err := compileReplies(cfg.Responses)
	if err != nil {
		return nil, err
	}

	return &Library{
		intents:   intents,
		fields:    fields,
		threshold: threshold,
		replies:   replies,
	}, nil
}

// MustLoad is Load that panics; for package-level tables known to be valid.
func MustLoad(cfg Config) *Library {
	lib, err := Load(cfg)
	if err != nil {
		panic(err)
	}
	return lib
}

// Threshold is the minimum confidence for accepting an intent.
func (l *Library) Threshold() float64 { return l.threshold }

// IntentRules returns the intent rules in evaluation order.
func (l *Library) IntentRules() []IntentRule {
	out := make([]IntentRule, len(l.intents))
	copy(out, l.intents)
	return out
}

// FieldRules returns the field rules in evaluation order.
func (l *Library) FieldRules() []FieldRule {
	out := make([]FieldRule, len(l.fields))
	copy(out, l.fields)
	return out
}

// ReplyData is what reply templates are executed with.
type ReplyData struct {
	Intent     string
	Parameters map[string]string
	Text       string
}

// Reply renders the reply template for data.Intent, falling back to the
// "unknown" template.
func (l *Library) Reply(data ReplyData) (string, error) {
	tmpl, ok := l.replies[data.Intent]
	if !ok {
		tmpl, ok = l.replies[string(constants.IntentUnknown)]
	}
	if !ok {
		return fallbackReply, nil
	}
	if data.Parameters == nil {
		data.Parameters = map[string]string{}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render reply %q: %w", tmpl.Name(), err)
	}
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func compileIntentRules(rules []Rule) ([]IntentRule, error) {
	const table = "intent_rules"
	out := make([]IntentRule, 0, len(rules))
	ids := newIDAllocator()
	for i, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, &RuleError{Table: table, Index: i, Reason: "name is required"}
		}
		if name == string(constants.IntentUnknown) {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: "intent name is reserved"}
		}
		re, err := compilePattern(r.Pattern, r.CaseSensitive)
		if err != nil {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: "bad pattern", Err: err}
		}
		conf := DefaultRuleConfidence
		if r.Confidence != nil {
			conf = *r.Confidence
		}
		if conf < 0 || conf > 1 {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: fmt.Sprintf("confidence %v outside [0,1]", conf)}
		}
		id, err := ids.assign(name, r.ID)
		if err != nil {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: err.Error()}
		}

		params := make([]Param, 0, len(r.Params))
		seen := map[string]struct{}{}
		for _, p := range r.Params {
			pname := strings.TrimSpace(p.Name)
			if pname == "" {
				return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: "parameter name is required"}
			}
			if _, dup := seen[pname]; dup {
				return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: fmt.Sprintf("parameter %q declared twice", pname)}
			}
			seen[pname] = struct{}{}
			pre, err := compilePattern(p.Pattern, false)
			if err != nil {
				return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: fmt.Sprintf("bad pattern for parameter %q", pname), Err: err}
			}
			g, err := resolveGroup(pre, p.Group)
			if err != nil {
				return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: fmt.Sprintf("parameter %q: %v", pname, err)}
			}
			params = append(params, Param{Name: pname, re: pre, group: g})
		}

		out = append(out, IntentRule{
			ID:         id,
			Intent:     name,
			Confidence: conf,
			Priority:   r.Priority,
			Params:     params,
			match:      re,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Priority > out[b].Priority })
	return out, nil
}

func compileFieldRules(rules []Rule) ([]FieldRule, error) {
	const table = "field_rules"
	out := make([]FieldRule, 0, len(rules))
	ids := newIDAllocator()
	for i, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, &RuleError{Table: table, Index: i, Reason: "name is required"}
		}
		typ := r.Type
		if typ == "" {
			typ = ValueText
		}
		if _, ok := valueTypes[typ]; !ok {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: fmt.Sprintf("unknown value type %q", typ)}
		}
		if r.MinLength < 0 {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: "min_length must be >= 0"}
		}
		re, err := compilePattern(r.Pattern, r.CaseSensitive)
		if err != nil {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: "bad pattern", Err: err}
		}
		g, err := resolveGroup(re, r.Group)
		if err != nil {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: err.Error()}
		}
		id, err := ids.assign(name, r.ID)
		if err != nil {
			return nil, &RuleError{Table: table, Index: i, Rule: name, Reason: err.Error()}
		}
		out = append(out, FieldRule{
			ID:        id,
			Field:     name,
			Type:      typ,
			MinLength: r.MinLength,
			Priority:  r.Priority,
			re:        re,
			group:     g,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Priority > out[b].Priority })
	return out, nil
}

func compileReplies(responses map[string]string) (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(responses))
	for intent, text := range responses {
		tmpl, err := template.New(intent).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, &RuleError{Table: "responses", Rule: intent, Reason: "bad reply template", Err: err}
		}
		out[intent] = tmpl
	}
	return out, nil
}

func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// resolveGroup turns a group reference into a submatch index.
func resolveGroup(re *regexp.Regexp, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		if re.NumSubexp() == 0 {
			return 0, nil
		}
		return 1, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 0 || n > re.NumSubexp() {
			return 0, fmt.Errorf("capture group %d is not defined (pattern has %d)", n, re.NumSubexp())
		}
		return n, nil
	}
	n := re.SubexpIndex(ref)
	if n < 0 {
		return 0, fmt.Errorf("capture group %q is not defined", ref)
	}
	return n, nil
}

func findGroup(re *regexp.Regexp, group int, text string) (string, bool) {
	m := re.FindStringSubmatchIndex(text)
	if m == nil || m[2*group] < 0 {
		return "", false
	}
	return text[m[2*group]:m[2*group+1]], true
}

type idAllocator struct {
	counts map[string]int
	used   map[string]struct{}
}

func newIDAllocator() *idAllocator {
	return &idAllocator{counts: map[string]int{}, used: map[string]struct{}{}}
}

func (a *idAllocator) assign(name, explicit string) (string, error) {
	a.counts[name]++
	id := strings.TrimSpace(explicit)
	if id == "" {
		id = fmt.Sprintf("%s#%d", name, a.counts[name])
	}
	if _, dup := a.used[id]; dup {
		return "", fmt.Errorf("duplicate rule id %q", id)
	}
	a.used[id] = struct{}{}
	return id, nil
}
