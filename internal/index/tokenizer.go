// Package index maintains the inverted index derived from the document
// store. The synchronizer runs inside the store's transaction so the
// index can never be observed out of step with the documents.
package index

import (
	"strings"
	"unicode"
)

// Token is a single indexed term with its ordinal in the token stream
// and byte offsets into the original text.
type Token struct {
	Term  string
	Pos   int // 0-based ordinal in the token stream
	Start int // byte offset of the first rune
	End   int // byte offset past the last rune
}

// Tokenize lowercase-folds text and splits it on non-alphanumeric rune
// boundaries, discarding empty tokens.
//
// The exact same function is applied to indexed content and to query
// terms; any divergence silently degrades recall.
func Tokenize(text string) []string {
	toks := TokenizeOffsets(text)
	terms := make([]string, len(toks))
	for i, t := range toks {
		terms[i] = t.Term
	}
	return terms
}

// TokenizeOffsets is Tokenize with byte offsets preserved, used for
// posting positions and snippet assembly.
func TokenizeOffsets(text string) []Token {
	var tokens []Token
	var b strings.Builder
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		tokens = append(tokens, Token{
			Term:  b.String(),
			Pos:   len(tokens),
			Start: start,
			End:   end,
		})
		b.Reset()
		start = -1
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush(i)
	}
	flush(len(text))

	return tokens
}
