// Package store provides the canonical document store: SQLite-backed
// persistence with content-hash change detection. Every mutation drives
// the index synchronizer inside the same transaction, so readers never
// observe a document without its postings or vice versa.
package store

import (
	"context"
	"database/sql"
	"time"

	verrors "github.com/agentvault/agentvault/internal/errors"
)

// TimeFormat is the fixed-width RFC3339 layout (UTC, millisecond
// precision) used for ingested_at. Fixed width keeps lexicographic
// ordering equal to chronological ordering inside SQL.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Document is one ingested unit of content.
type Document struct {
	// ID is the store-assigned surrogate key, immutable once assigned.
	ID int64

	// Source identifies the originating export family (e.g. "chatgpt").
	Source string

	// Path is the stable locator of the originating file; (Source, Path)
	// forms the natural key.
	Path string

	// Title is an optional human-readable label.
	Title string

	// CreatedAt is the RFC3339 timestamp of original authorship, empty
	// if unrecoverable.
	CreatedAt string

	// Content is the full normalized text body.
	Content string

	// ContentHash is the sha256 hex digest of Content.
	ContentHash string

	// IngestedAt is the time of the last store mutation for this record.
	IngestedAt time.Time
}

// UpsertOutcome reports what an Upsert call did.
type UpsertOutcome int

const (
	// Unchanged means an identical document was already stored; nothing
	// was written and the index was not touched.
	Unchanged UpsertOutcome = iota
	// Created means a new record was inserted.
	Created
	// Updated means an existing record was overwritten in place.
	Updated
)

// String implements fmt.Stringer.
func (o UpsertOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// ErrNotFound is returned when no live document exists for a key.
var ErrNotFound = verrors.New(verrors.ErrCodeDocNotFound, "document not found", nil)

// Synchronizer keeps a derived index in lockstep with the store. The
// store invokes it on the mutating transaction: Remove before Insert on
// updates, Insert alone on creates, Remove alone on deletes. A failure
// rolls back the whole transaction.
type Synchronizer interface {
	// Schema returns DDL executed with the store schema on open.
	Schema() string

	// Insert adds derived rows for a document's title and content.
	Insert(ctx context.Context, tx *sql.Tx, docID int64, title, content string) error

	// Remove deletes all derived rows for a document.
	Remove(ctx context.Context, tx *sql.Tx, docID int64) error
}

// Stats summarizes store and index contents.
type Stats struct {
	DocumentCount int
	TermCount     int
	TotalTokens   int
	AvgDocLength  float64
}
