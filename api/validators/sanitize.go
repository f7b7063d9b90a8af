package validators

import "strings"

// SanitizeString trims surrounding whitespace and caps the result at maxRunes
// runes. Callers that must not lose input validate the length first.
func SanitizeString(input string, maxRunes int) string {
	trimmed := strings.TrimSpace(input)
	if maxRunes <= 0 {
		return trimmed
	}
	count := 0
	for i := range trimmed {
		if count == maxRunes {
			return trimmed[:i]
		}
		count++
	}
	return trimmed
}
