// Package search implements ranked retrieval over the inverted index:
// query parsing, BM25 scoring, and snippet extraction.
package search

import "time"

// Result is a single ranked search hit.
type Result struct {
	Source     string    `json:"source"`
	Path       string    `json:"path"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet"`
	Score      float64   `json:"score"`
	IngestedAt time.Time `json:"-"`
	ID         int64     `json:"-"`
}

// Config holds ranking and snippet parameters.
type Config struct {
	// K1 is the BM25 term frequency saturation parameter.
	K1 float64

	// B is the BM25 document length normalization parameter.
	B float64

	// DefaultLimit is used when the caller passes limit <= 0.
	DefaultLimit int

	// SnippetTokens is the snippet window size in tokens.
	SnippetTokens int

	// DocCacheSize bounds the tokenized-document cache.
	DocCacheSize int
}

// DefaultConfig returns the standard BM25 parameters and result shaping.
func DefaultConfig() Config {
	return Config{
		K1:            1.2,
		B:             0.75,
		DefaultLimit:  8,
		SnippetTokens: 12,
		DocCacheSize:  256,
	}
}
