package validators

import (
	"strings"
	"unicode/utf8"
)

// SanitizeString trims input, folds whitespace runs into single spaces, and
// cuts the result to at most maxLen runes without splitting a character.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(input), " ")
	if maxLen <= 0 || utf8.RuneCountInString(cleaned) <= maxLen {
		return cleaned
	}
	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:maxLen]))
}
