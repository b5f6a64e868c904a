package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receptro/internal/patterns"
)

func newDefault(t *testing.T) *Recognizer {
	t.Helper()
	lib, err := patterns.Load(patterns.Default())
	require.NoError(t, err)
	return NewRecognizer(lib, nil)
}

func TestRecognizeBookingExample(t *testing.T) {
	r := newDefault(t)

	res := r.Recognize("I would like to book an appointment for Monday at 2 PM")

	assert.Equal(t, "book_appointment", res.Intent)
	assert.GreaterOrEqual(t, res.Confidence, 0.8)
	assert.Equal(t, map[string]string{"date": "Monday", "time": "2 PM"}, res.Parameters)
	assert.Equal(t, "book_appointment#1", res.Rule)
}

func TestRecognizeBuiltinIntents(t *testing.T) {
	r := newDefault(t)

	tests := []struct {
		text   string
		intent string
		params map[string]string
	}{
		{"Remind me to call mom in 10 minutes", "set_reminder", map[string]string{"task": "call mom", "time": "in 10 minutes"}},
		{"What's the weather in Paris today?", "get_weather", map[string]string{"location": "Paris", "time": "today"}},
		{"Play Bohemian Rhapsody by Queen", "play_music", map[string]string{"song": "Bohemian Rhapsody", "artist": "Queen"}},
		{"How do I get to the airport", "get_directions", map[string]string{"destination": "airport"}},
		{"Tell me about black holes", "general_question", map[string]string{"topic": "black holes"}},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			res := r.Recognize(tt.text)
			assert.Equal(t, tt.intent, res.Intent)
			assert.Equal(t, tt.params, res.Parameters)
		})
	}
}

func TestRecognizeEmptyInputIsUnknown(t *testing.T) {
	r := newDefault(t)

	for _, text := range []string{"", "   ", "\n\t  \n"} {
		res := r.Recognize(text)
		assert.True(t, res.Unknown())
		assert.Zero(t, res.Confidence)
		assert.NotNil(t, res.Parameters)
		assert.Empty(t, res.Parameters)
		assert.Empty(t, res.Rule)
	}
}

func TestRecognizeNoMatchIsUnknown(t *testing.T) {
	r := newDefault(t)

	res := r.Recognize("the quick brown fox jumps")
	assert.Equal(t, "unknown", res.Intent)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Parameters)
}

func TestRecognizeEarlierRuleWins(t *testing.T) {
	lib, err := patterns.Load(patterns.Config{
		IntentRules: []patterns.Rule{
			{Name: "first", Pattern: `order`, Confidence: patterns.Weight(0.7)},
			{Name: "second", Pattern: `order pizza`, Confidence: patterns.Weight(0.95)},
		},
	})
	require.NoError(t, err)
	r := NewRecognizer(lib, nil)

	for i := 0; i < 5; i++ {
		res := r.Recognize("I want to ORDER   pizza")
		assert.Equal(t, "first", res.Intent)
		assert.Equal(t, 0.7, res.Confidence)
	}
}

func TestRecognizeBelowThresholdDowngrades(t *testing.T) {
	lib, err := patterns.Load(patterns.Config{
		IntentRules: []patterns.Rule{{
			Name:       "weak",
			Pattern:    `maybe`,
			Confidence: patterns.Weight(0.3),
			Params:     []patterns.ParamRule{{Name: "what", Pattern: `maybe (\w+)`}},
		}},
	}.WithThreshold(0.5))
	require.NoError(t, err)
	r := NewRecognizer(lib, nil)

	res := r.Recognize("maybe tomorrow")
	assert.Equal(t, "unknown", res.Intent)
	assert.Empty(t, res.Parameters)
	assert.Equal(t, "weak#1", res.Rule)
	assert.Less(t, res.Confidence, lib.Threshold())
}

func TestRecognizeConfidenceInRange(t *testing.T) {
	r := newDefault(t)

	inputs := []string{
		"", "hello", "book", "what time is it", "schedule a meeting next week",
		"navigate to the station from the hotel", "is it going to rain tomorrow",
	}
	for _, in := range inputs {
		res := r.Recognize(in)
		assert.GreaterOrEqual(t, res.Confidence, 0.0, in)
		assert.LessOrEqual(t, res.Confidence, 1.0, in)
		if res.Confidence < 0.5 {
			assert.True(t, res.Unknown(), in)
			assert.Empty(t, res.Parameters, in)
		}
	}
}

func TestRecognizeIsIdempotent(t *testing.T) {
	r := newDefault(t)

	text := "Please schedule a consultation for Friday at 10:30 am"
	first := r.Recognize(text)
	second := r.Recognize(text)
	assert.Equal(t, first, second)
	assert.Equal(t, "consultation", first.Parameters["service"])
	assert.Equal(t, "Friday", first.Parameters["date"])
	assert.Equal(t, "10:30 am", first.Parameters["time"])
}

func TestReply(t *testing.T) {
	r := newDefault(t)

	reply, err := r.Reply(r.Recognize("I would like to book an appointment for Monday at 2 PM"))
	require.NoError(t, err)
	assert.Equal(t, "Okay, I've booked your appointment for Monday at 2 PM.", reply)

	reply, err = r.Reply(r.Recognize("zzz"))
	require.NoError(t, err)
	assert.Contains(t, reply, "not sure how to help")
}
