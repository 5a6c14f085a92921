// Package ingest turns raw export files in the vault into normalized
// documents and drives them through the store's single writer.
package ingest

import "context"

// Document is a normalized export ready for the store.
type Document struct {
	Source    string
	Path      string
	Title     string
	CreatedAt string
	Content   string
}

// Producer scans one export family and emits normalized documents.
// A failing file is logged and skipped; Produce returns an error only
// when the whole scan cannot proceed.
type Producer interface {
	// Source identifies the export family ("chatgpt", "perplexity").
	Source() string

	// Produce sends documents to out until the scan completes or ctx is
	// cancelled. The caller owns the channel.
	Produce(ctx context.Context, out chan<- Document) error
}
