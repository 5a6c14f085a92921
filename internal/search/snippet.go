package search

import (
	"strings"

	"github.com/agentvault/agentvault/internal/index"
)

// makeSnippet extracts a window of roughly `window` tokens around the
// first matched term, bracketing matched tokens and marking truncation
// with ellipses. When no term matches the body (title-only hits) the
// leading window is used.
func makeSnippet(content string, tokens []index.Token, matched map[string]struct{}, window int) string {
	if len(tokens) == 0 {
		return ""
	}
	if window <= 0 {
		window = DefaultConfig().SnippetTokens
	}

	first := 0
	for i, tok := range tokens {
		if matchesTerm(tok.Term, matched) {
			first = i
			break
		}
	}

	start := first - window/2
	if start+window > len(tokens) {
		start = len(tokens) - window
	}
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(tokens) {
		end = len(tokens)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("…")
	}
	for i := start; i < end; i++ {
		if i > start {
			b.WriteString(collapseSpace(content[tokens[i-1].End:tokens[i].Start]))
		}
		text := content[tokens[i].Start:tokens[i].End]
		if matchesTerm(tokens[i].Term, matched) {
			b.WriteString("[")
			b.WriteString(text)
			b.WriteString("]")
		} else {
			b.WriteString(text)
		}
	}
	if end < len(tokens) {
		b.WriteString("…")
	}
	return b.String()
}

// matchesTerm reports whether a document token matches any query term,
// including prefix expansions already resolved to concrete index terms.
func matchesTerm(term string, matched map[string]struct{}) bool {
	_, ok := matched[term]
	return ok
}

// collapseSpace flattens the text between two tokens to at most one
// space when it spans lines, keeping short punctuation runs as-is.
func collapseSpace(gap string) string {
	if !strings.ContainsAny(gap, "\n\r\t") {
		return gap
	}
	fields := strings.Fields(gap)
	if len(fields) == 0 {
		return " "
	}
	return strings.Join(fields, " ") + " "
}
