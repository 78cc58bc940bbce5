// Package normalize provides the text-normalization chain of the query
// pipeline: tokenisation with stop-word removal, spelling correction against
// the index vocabulary, and synonym expansion.
package normalize

import (
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {},
}

// Token is a single normalised term and its position in the token sequence.
type Token struct {
	Term     string
	Position int
}

// Tokenize lower-cases text, keeps only alphabetic runs (digits and
// punctuation are discarded, not converted), and drops stop-words. Positions
// are zero-based indexes into the resulting token sequence. Empty input
// yields an empty slice.
func Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms is Tokenize without positions.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}

// IsStopWord reports whether word is in the fixed stop-word set.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}
