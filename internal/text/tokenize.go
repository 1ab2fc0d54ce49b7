// Package text normalizes and tokenizes sentences so that dataset words,
// word vectors and frequency counts share one key space.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC and lowercases s.
func Normalize(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Tokenize splits a normalized sentence on whitespace and breaks punctuation
// off words. Apostrophes and hyphens between word characters stay attached.
func Tokenize(s string) []string {
	var tokens []string
	for _, field := range strings.Fields(Normalize(s)) {
		tokens = appendTokens(tokens, []rune(field))
	}
	return tokens
}

func appendTokens(tokens []string, runes []rune) []string {
	start := -1
	for i, r := range runes {
		if isWordRune(runes, i) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, string(runes[start:i]))
			start = -1
		}
		tokens = append(tokens, string(r))
	}
	if start >= 0 {
		tokens = append(tokens, string(runes[start:]))
	}
	return tokens
}

func isWordRune(runes []rune, i int) bool {
	r := runes[i]
	if isAlnum(r) || unicode.IsMark(r) {
		return true
	}
	if r == '\'' || r == '-' {
		return i > 0 && i < len(runes)-1 && isAlnum(runes[i-1]) && isAlnum(runes[i+1])
	}
	return false
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
