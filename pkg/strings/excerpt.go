// Package strings holds small text helpers shared by the CLI and the
// request dispatcher.
package strings

import (
	"strings"
)

// DefaultExcerptLen bounds response bodies quoted in error messages.
const DefaultExcerptLen = 200

// minExcerptLen leaves room for one character plus "...".
const minExcerptLen = 4

// Excerpt collapses all whitespace runs in s into single spaces and cuts the
// result to maxLen runes, marking a cut with "...". Response bodies quoted
// in errors stay on one line this way.
func Excerpt(s string, maxLen int) string {
	if maxLen < minExcerptLen {
		maxLen = minExcerptLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// Mask shows the last visible runes of a secret and hides the rest, for
// telling credentials apart in CLI output. Secrets no longer than twice
// visible are hidden completely.
func Mask(secret string, visible int) string {
	runes := []rune(secret)
	if len(runes) == 0 {
		return ""
	}
	if visible <= 0 || len(runes) <= 2*visible {
		return "****"
	}
	return "****" + string(runes[len(runes)-visible:])
}
