package patterns

import "github.com/joseph-ayodele/receptro/constants"

const (
	weekdayOrRelative = `monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|today|tonight|next week`
	monthDay          = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?`
	ordinalDay        = `\d{1,2}(?:st|nd|rd|th)(?:\s+of\s+[a-z]+)?`
	clockTime         = `\d{1,2}(?::\d{2})?\s*(?:am|pm|a\.m\.|p\.m\.|o'clock)|noon|midnight`
	numericDate       = `\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}`
)

// Default returns the built-in rule table. Multi-keyword rules come first and
// carry higher confidence than the single-keyword fallbacks below them.
func Default() Config {
	return Config{
		IntentRules: []Rule{
			{
				Name:       string(constants.IntentSetReminder),
				Pattern:    `\b(remind|reminder|alert|notify)\b.*\b(to|about|at|in)\b`,
				Confidence: Weight(0.85),
				Params:     reminderParams(),
			},
			{
				Name:       string(constants.IntentBookAppointment),
				Pattern:    `\b(book|schedule|reserve|make|set up)\b.*\b(appointment|meeting|consultation|checkup|check-up|session|reservation)s?\b`,
				Confidence: Weight(0.9),
				Params:     appointmentParams(),
			},
			{
				Name:       string(constants.IntentGetDirections),
				Pattern:    `\b(directions?|navigate|route)\b.*\b(to|from)\b|\bhow (do i|can i|to) get to\b`,
				Confidence: Weight(0.85),
				Params:     directionParams(),
			},
			{
				Name:       string(constants.IntentGetWeather),
				Pattern:    `\b(weather|forecast|temperature|rain|sunny|cloudy)\b.*\b(in|today|tomorrow|tonight|this week|next week)\b`,
				Confidence: Weight(0.85),
				Params:     weatherParams(),
			},
			{
				Name:       string(constants.IntentPlayMusic),
				Pattern:    `\bplay\b.*\b(song|music|album|track|playlist|by)\b`,
				Confidence: Weight(0.85),
				Params:     musicParams(),
			},

			{Name: string(constants.IntentSetReminder), Pattern: `\b(remind|reminder|alert|notify)\b`, Confidence: Weight(0.6), Params: reminderParams()},
			{Name: string(constants.IntentBookAppointment), Pattern: `\b(book|appointment|schedule|reserve)\b`, Confidence: Weight(0.6), Params: appointmentParams()},
			{Name: string(constants.IntentGetDirections), Pattern: `\b(directions|navigate|route)\b|\bway to\b|\bhow to get\b`, Confidence: Weight(0.6), Params: directionParams()},
			{Name: string(constants.IntentGetWeather), Pattern: `\b(weather|forecast|temperature|rain|sunny|cloudy)\b`, Confidence: Weight(0.6), Params: weatherParams()},
			{Name: string(constants.IntentPlayMusic), Pattern: `\b(play|music|song|artist|album)\b`, Confidence: Weight(0.6), Params: musicParams()},
			{
				Name:       string(constants.IntentGeneralQuestion),
				Pattern:    `^(what|how|when|where|why|who)\b|\b(tell me|explain)\b`,
				Confidence: Weight(0.55),
				Params: []ParamRule{
					{Name: "topic", Pattern: `(?:tell me about|explain|what is|what are|what's|how does|how do)\s+(.+?)[?.!]*$`},
				},
			},
		},

		FieldRules: []Rule{
			{Name: "name", Pattern: `\b(?:full\s+)?name\s*[:\-]\s*([a-z][a-z ,.'-]*[a-z])`, Type: ValueName, MinLength: 3},
			{Name: "name", Pattern: `\A([A-Z][a-z]+ [A-Z][a-z]+)[ \t]*(?:\n|\z)`, CaseSensitive: true, Type: ValueName, MinLength: 3},

			{Name: "date_of_birth", Pattern: `\b(?:date\s+of\s+birth|dob|birth\s*date)\s*[:\-]?\s*(` + numericDate + `)`, Type: ValueDate},
			{Name: "date_of_birth", Pattern: `\bborn\s*[:\-]?\s*(?:on\s+)?(` + numericDate + `)`, Type: ValueDate},
			{Name: "date_of_birth", Pattern: `\b(\d{1,2}[-/]\d{1,2}[-/]\d{4})\b`, Type: ValueDate},

			{Name: "id_number", Pattern: `\b(?:id|license|licence|card|document|passport)\s*(?:number|no\.?|num|#)?\s*[:#]\s*([a-z0-9][a-z0-9-]{3,})`, Type: ValueID, MinLength: 4},
			{Name: "id_number", Pattern: `\b([A-Z]{1,3}\d{6,12})\b`, CaseSensitive: true, Type: ValueID},

			{Name: "address", Pattern: `\b(?:address|addr|street)\s*[:\-]\s*([^\n]+)`, Type: ValueText, MinLength: 5},
			{Name: "address", Pattern: `\b(\d+\s+[a-z0-9 .]+?\s(?:street|st|avenue|ave|road|rd|lane|ln|drive|dr|boulevard|blvd)\b\.?)`, Type: ValueText, MinLength: 5},

			{Name: "phone", Pattern: `\b(?:phone|tel|telephone|mobile|cell)\s*(?:no\.?|number|#)?\s*[:.\-]?\s*(\+?[0-9(][0-9()\-. ]{6,}[0-9])`, Type: ValuePhone, MinLength: 7},
			{Name: "phone", Pattern: `(\(\d{3}\)\s*\d{3}-\d{4})`, Type: ValuePhone},
			{Name: "phone", Pattern: `\b(\d{3}[-.]\d{3}[-.]\d{4})\b`, Type: ValuePhone},

			{Name: "email", Pattern: `\b(?:email|e-mail)\s*[:\-]?\s*([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})`, Type: ValueEmail},
			{Name: "email", Pattern: `\b([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})\b`, Type: ValueEmail},

			{Name: "expiry_date", Pattern: `\b(?:expires?|expiry|exp|expiration(?:\s+date)?)\.?\s*[:\-]?\s*(` + numericDate + `)`, Type: ValueDate},
			{Name: "expiry_date", Pattern: `\bvalid\s+(?:until|thru|through)\s*[:\-]?\s*(` + numericDate + `)`, Type: ValueDate},

			{Name: "issuer", Pattern: `\bissued\s+by\s*[:\-]?\s*([a-z][a-z .&'-]*[a-z])`, Type: ValueText, MinLength: 3},
			{Name: "issuer", Pattern: `\b(?:state|country|authority)\s*[:\-]\s*([a-z][a-z .&'-]*[a-z])`, Type: ValueText, MinLength: 3},
		},

		Responses: map[string]string{
			string(constants.IntentBookAppointment): `Okay, I've booked your appointment{{with .Parameters.date}} for {{.}}{{end}}{{with .Parameters.time}} at {{.}}{{end}}.`,
			string(constants.IntentGetWeather):      `The weather{{with .Parameters.location}} in {{.}}{{end}} is looking good {{or .Parameters.time "today"}}.`,
			string(constants.IntentSetReminder):     `I'll remind you{{with .Parameters.task}} to {{.}}{{end}}{{with .Parameters.time}} {{.}}{{end}}.`,
			string(constants.IntentPlayMusic):       `Playing {{or .Parameters.song "music"}}{{with .Parameters.artist}} by {{.}}{{end}}.`,
			string(constants.IntentGetDirections):   `Here are directions{{with .Parameters.destination}} to {{.}}{{end}}{{with .Parameters.from}} from {{.}}{{end}}.`,
			string(constants.IntentGeneralQuestion): `Let me help you with that question.`,
			string(constants.IntentUnknown):         fallbackReply,
		},
	}
}

func appointmentParams() []ParamRule {
	return []ParamRule{
		{Name: "date", Pattern: `\b(` + weekdayOrRelative + `|` + monthDay + `|` + ordinalDay + `)\b`},
		{Name: "time", Pattern: `\b(` + clockTime + `)`},
		{Name: "service", Pattern: `\b(consultation|checkup|check-up|cleaning|haircut|meeting|call|session)\b`},
	}
}

func weatherParams() []ParamRule {
	return []ParamRule{
		{Name: "location", Pattern: `\bin\s+([a-z][a-z ]*?)(?:\s+(?:today|tomorrow|tonight|this week|next week)|[.,!?]|$)`},
		{Name: "time", Pattern: `\b(today|tomorrow|tonight|this week|next week|this weekend)\b`},
	}
}

func reminderParams() []ParamRule {
	return []ParamRule{
		{Name: "task", Pattern: `\bto\s+([^.!?]+?)(?:\s+(?:in\s+\d+\s+(?:minutes?|hours?|days?)|at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)|tomorrow|today|tonight))?(?:[.!?]|$)`},
		{Name: "time", Pattern: `\b(in\s+\d+\s+(?:minutes?|hours?|days?)|at\s+\d{1,2}(?::\d{2})?\s*(?:am|pm)|tomorrow|today|tonight)\b`},
	}
}

func musicParams() []ParamRule {
	return []ParamRule{
		{Name: "song", Pattern: `\bplay\s+(.+?)(?:\s+by\s+|[.!?]|$)`},
		{Name: "artist", Pattern: `\bby\s+([a-z][a-z .'&-]*?)(?:[.!?]|$)`},
	}
}

func directionParams() []ParamRule {
	return []ParamRule{
		{Name: "destination", Pattern: `\b(?:directions|navigate|route|way|get|go|drive|walk)\s+(?:me\s+)?to\s+(?:the\s+)?(.+?)(?:\s+from\s+|[.!?]|$)`},
		{Name: "from", Pattern: `\bfrom\s+(?:the\s+)?([a-z][a-z0-9 ]*?)(?:\s+to\s+|[.!?]|$)`},
	}
}
