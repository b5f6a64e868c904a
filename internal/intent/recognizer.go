// Package intent classifies free text against the intent rule table.
package intent

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/receptro/constants"
	"github.com/joseph-ayodele/receptro/internal/patterns"
)

// Result is one recognition outcome. Parameters is never nil.
type Result struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Parameters map[string]string `json:"parameters"`
	Rule       string            `json:"rule,omitempty"`
	Text       string            `json:"original_text"`
}

// Unknown reports whether no rule was accepted.
func (r Result) Unknown() bool { return r.Intent == string(constants.IntentUnknown) }

// Recognizer is stateless beyond its library and safe for concurrent use.
type Recognizer struct {
	lib    *patterns.Library
	rules  []patterns.IntentRule
	logger *slog.Logger
}

func NewRecognizer(lib *patterns.Library, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{lib: lib, rules: lib.IntentRules(), logger: logger}
}

// Recognize returns the first rule (in library order) whose pattern matches the
// normalized text. It never fails: no match is the unknown intent at 0.
func (r *Recognizer) Recognize(text string) Result {
	collapsed := collapseSpace(text)
	normalized := strings.ToLower(collapsed)

	res := Result{
		Intent:     string(constants.IntentUnknown),
		Parameters: map[string]string{},
		Text:       text,
	}
	if normalized == "" {
		return res
	}

	for _, rule := range r.rules {
		if !rule.Matches(normalized) {
			continue
		}
		res.Rule = rule.ID
		res.Confidence = clamp(rule.Confidence)
		if res.Confidence < r.lib.Threshold() {
			r.logger.Debug("intent below threshold",
				"rule", rule.ID, "confidence", res.Confidence, "threshold", r.lib.Threshold())
			return res
		}
		res.Intent = rule.Intent
		for _, p := range rule.Params {
			if _, set := res.Parameters[p.Name]; set {
				continue
			}
			if v, ok := p.Find(collapsed); ok {
				if v = strings.TrimSpace(v); v != "" {
					res.Parameters[p.Name] = v
				}
			}
		}
		return res
	}
	return res
}

// Reply renders the reply text for a recognition result.
func (r *Recognizer) Reply(res Result) (string, error) {
	return r.lib.Reply(patterns.ReplyData{
		Intent:     res.Intent,
		Parameters: res.Parameters,
		Text:       res.Text,
	})
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
