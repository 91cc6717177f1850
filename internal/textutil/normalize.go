// Package textutil provides the text analysis primitives behind automatic
// grading: normalization, keyword and concept extraction, TF-IDF similarity
// and anti-cheating heuristics. Everything here is a pure function of its
// inputs and safe for concurrent use.
package textutil

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, replaces punctuation other than apostrophes
// with spaces and collapses whitespace runs. Empty input yields an empty
// string; Normalize never fails.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\'':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			// Whitespace and punctuation both act as separators.
			space = true
		}
	}
	return b.String()
}

// WordCount returns the number of whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
