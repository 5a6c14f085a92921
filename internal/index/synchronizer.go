package index

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// schema holds the inverted index tables, kept in the same SQLite file
// as the docs table so one transaction covers both.
//
// postings maps term -> (doc_id, tf, positions); positions are token
// ordinals encoded as space-separated decimals (title first, content
// offset past a gap), needed for phrase adjacency checks. doc_lengths
// carries per-document token counts for BM25 length normalization.
// Term document frequency is derived with COUNT(*) over postings inside
// the reader's snapshot, so it cannot drift from the postings
// themselves.
const schema = `
CREATE TABLE IF NOT EXISTS postings (
	term TEXT NOT NULL,
	doc_id INTEGER NOT NULL,
	tf INTEGER NOT NULL,
	positions TEXT NOT NULL,
	PRIMARY KEY (term, doc_id)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS postings_by_doc ON postings(doc_id);

CREATE TABLE IF NOT EXISTS doc_lengths (
	doc_id INTEGER PRIMARY KEY,
	token_count INTEGER NOT NULL
);
`

// Synchronizer maintains the inverted index rows for the document store.
// All mutations run on the transaction the store passes in; the store
// commits documents and postings atomically or not at all.
type Synchronizer struct{}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer() *Synchronizer {
	return &Synchronizer{}
}

// Schema returns the DDL for the index tables. The store executes it
// alongside its own schema on open.
func (s *Synchronizer) Schema() string {
	return schema
}

// Insert tokenizes title and content and writes postings plus the
// document length row. The caller must have removed any previous
// postings for docID first (see Remove).
func (s *Synchronizer) Insert(ctx context.Context, tx *sql.Tx, docID int64, title, content string) error {
	titleTokens := Tokenize(title)
	contentTokens := Tokenize(content)
	total := len(titleTokens) + len(contentTokens)

	// Preserve first-seen term order for deterministic insert order.
	// Title and content occupy disjoint position ranges separated by a
	// one-slot gap, so a phrase can never bridge the two fields.
	positions := make(map[string][]int, total)
	var order []string
	add := func(term string, pos int) {
		if _, seen := positions[term]; !seen {
			order = append(order, term)
		}
		positions[term] = append(positions[term], pos)
	}
	for i, term := range titleTokens {
		add(term, i)
	}
	offset := len(titleTokens) + 1
	for i, term := range contentTokens {
		add(term, offset+i)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO postings(term, doc_id, tf, positions) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare postings insert: %w", err)
	}
	defer stmt.Close()

	for _, term := range order {
		pos := positions[term]
		if _, err := stmt.ExecContext(ctx, term, docID, len(pos), encodePositions(pos)); err != nil {
			return fmt.Errorf("insert posting %q: %w", term, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO doc_lengths(doc_id, token_count) VALUES (?, ?)`,
		docID, total); err != nil {
		return fmt.Errorf("insert doc length: %w", err)
	}

	return nil
}

// Remove deletes all postings and the length row for docID. It works
// from the stored index rows, not from any content the caller has, so
// removal is exact even when the document body has since changed.
func (s *Synchronizer) Remove(ctx context.Context, tx *sql.Tx, docID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM postings WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete postings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_lengths WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete doc length: %w", err)
	}
	return nil
}

// encodePositions renders token ordinals as space-separated decimals.
func encodePositions(positions []int) string {
	var b strings.Builder
	for i, p := range positions {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// DecodePositions parses the postings position encoding.
func DecodePositions(s string) []int {
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
