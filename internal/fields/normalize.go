package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/receptro/internal/patterns"
)

var (
	reArtifacts  = regexp.MustCompile(`[|#$%^&*_~]`)
	reDateParts  = regexp.MustCompile(`(\d{1,2})[-/.](\d{1,2})[-/.](\d{2,4})`)
	reNonDigits  = regexp.MustCompile(`\D`)
	reEdgePunct  = regexp.MustCompile(`^[\s,.;:'"-]+|[\s,.;:'"-]+$`)
	reMultiSpace = regexp.MustCompile(`\s+`)
)

// Normalize cleans a captured value according to its type.
func Normalize(typ patterns.ValueType, raw string) string {
	switch typ {
	case patterns.ValueDate:
		return normalizeDate(raw)
	case patterns.ValuePhone:
		return normalizePhone(raw)
	case patterns.ValueName:
		return normalizeName(raw)
	case patterns.ValueEmail:
		return strings.ToLower(strings.TrimSpace(raw))
	case patterns.ValueID:
		return strings.ToUpper(strings.Join(strings.Fields(cleanText(raw)), ""))
	default:
		return cleanText(raw)
	}
}

// cleanText strips OCR artifacts, collapses whitespace and trims edge punctuation.
func cleanText(s string) string {
	s = reArtifacts.ReplaceAllString(s, "")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return reEdgePunct.ReplaceAllString(s, "")
}

// normalizeDate renders MM/DD/YYYY; two-digit years pivot at 50.
func normalizeDate(raw string) string {
	m := reDateParts.FindStringSubmatch(raw)
	if m == nil {
		return cleanText(raw)
	}
	month, day, year := m[1], m[2], m[3]
	switch len(year) {
	case 2:
		if y, _ := strconv.Atoi(year); y < 50 {
			year = "20" + year
		} else {
			year = "19" + year
		}
	case 3:
		return cleanText(raw)
	}
	return pad2(month) + "/" + pad2(day) + "/" + year
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// normalizePhone renders (xxx) xxx-xxxx for ten-digit numbers (and 1+ten).
func normalizePhone(raw string) string {
	digits := reNonDigits.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
	}
	return cleanText(raw)
}

func normalizeName(raw string) string {
	words := strings.Fields(cleanText(strings.ReplaceAll(raw, ",", " ")))
	for i, w := range words {
		words[i] = titleWord(w)
	}
	return strings.Join(words, " ")
}

func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	upper := true
	for i, r := range runes {
		if upper && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
		}
		upper = r == '-' || r == '\''
	}
	return string(runes)
}
