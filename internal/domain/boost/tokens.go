package boost

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^a-z0-9_]+`)

// Tokens lowercases text, splits it on non-word characters and keeps the distinct
// tokens of at least minLen characters.
func Tokens(text string, minLen int) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range nonWord.Split(strings.ToLower(text), -1) {
		if len(tok) >= minLen {
			out[tok] = struct{}{}
		}
	}
	return out
}
