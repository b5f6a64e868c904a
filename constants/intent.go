package constants

import "strings"

// Intent is a classified purpose of an utterance.
type Intent string

const (
	IntentBookAppointment Intent = "book_appointment"
	IntentGetWeather      Intent = "get_weather"
	IntentSetReminder     Intent = "set_reminder"
	IntentPlayMusic       Intent = "play_music"
	IntentGetDirections   Intent = "get_directions"
	IntentGeneralQuestion Intent = "general_question"
	IntentUnknown         Intent = "unknown"
)

var builtinIntents = []Intent{
	IntentBookAppointment,
	IntentGetWeather,
	IntentSetReminder,
	IntentPlayMusic,
	IntentGetDirections,
	IntentGeneralQuestion,
	IntentUnknown,
}

// BuiltinIntents returns the intents the default rule table produces.
func BuiltinIntents() []string {
	result := make([]string, len(builtinIntents))
	for i, in := range builtinIntents {
		result[i] = string(in)
	}
	return result
}

// CanonicalIntent maps loose labels ("Book Appointment", "booking") to an intent
// name. Unrecognized labels are returned normalized with ok=false.
func CanonicalIntent(label string) (Intent, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.Join(strings.Fields(strings.ReplaceAll(normalized, "-", " ")), "_")
	if normalized == "" {
		return IntentUnknown, false
	}

	synonyms := map[string]Intent{
		"booking":     IntentBookAppointment,
		"appointment": IntentBookAppointment,
		"weather":     IntentGetWeather,
		"reminder":    IntentSetReminder,
		"music":       IntentPlayMusic,
		"directions":  IntentGetDirections,
		"question":    IntentGeneralQuestion,
	}
	if in, ok := synonyms[normalized]; ok {
		return in, true
	}
	for _, in := range builtinIntents {
		if normalized == string(in) {
			return in, true
		}
	}
	return Intent(normalized), false
}
