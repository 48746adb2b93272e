// Package analysis provides text tokenisation for the search engine. It
// lower-cases input, splits on non-alphanumeric boundaries, removes
// stop-words, and applies a simple suffix-based stemmer, tracking the
// position and character span of every surviving token.
package analysis

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term, its in-field position, the
// character span it was produced from, and a per-occurrence boost.
type Token struct {
	Term      string
	Position  int
	StartChar int
	EndChar   int
	Boost     float64
}

// Tokenize breaks text into stemmed, lowercased Tokens with stop-words
// removed. Positions count surviving tokens; character offsets refer to the
// original text.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/8)
	pos := 0
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		for i < len(runes) && !isWordRune(runes[i]) {
			i++
		}
		start := i
		for i < len(runes) && isWordRune(runes[i]) {
			i++
		}
		if start == i {
			continue
		}
		word := strings.ToLower(string(runes[start:i]))
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		stemmed := stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:      stemmed,
			Position:  pos,
			StartChar: start,
			EndChar:   i,
			Boost:     1.0,
		})
		pos++
	}
	return tokens
}

// Normalize runs a single word through the same lowercasing and stemming the
// indexing path uses. It may produce zero tokens (stop-word, too short) or
// several (embedded separators).
func Normalize(word string) []Token {
	return Tokenize(word)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	suffixes := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ational", "ate", 2},
		{"tional", "tion", 2},
		{"encies", "ence", 2},
		{"ances", "ance", 2},
		{"ments", "ment", 2},
		{"izing", "ize", 2},
		{"ating", "ate", 2},
		{"iness", "y", 2},
		{"ously", "ous", 2},
		{"ively", "ive", 2},
		{"eness", "ene", 2},
		{"tion", "t", 3},
		{"sion", "s", 3},
		{"ying", "y", 2},
		{"ling", "l", 3},
		{"ies", "y", 2},
		{"ing", "", 3},
		{"ers", "er", 2},
		{"est", "", 3},
		{"ful", "", 3},
		{"ous", "", 3},
		{"ess", "", 3},
		{"ble", "", 3},
		{"ed", "", 3},
		{"er", "", 3},
		{"ly", "", 3},
		{"es", "", 3},
		{"ss", "ss", 2},
		{"s", "", 3},
	}
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
