package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	verrors "github.com/agentvault/agentvault/internal/errors"
)

// SQLiteStore is the canonical document store. A single durable file
// holds both the docs table and the synchronizer's index tables.
//
// Writes are serialized by an internal mutex (single-writer model);
// reads may run concurrently and see the last committed snapshot.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	sync   Synchronizer
	closed bool
}

const docsSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS docs (
	id INTEGER PRIMARY KEY,
	source TEXT NOT NULL,
	path TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	created_at TEXT,
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	ingested_at TEXT NOT NULL,
	UNIQUE(source, path)
);

INSERT OR IGNORE INTO schema_version (version) VALUES (1);
`

// Open opens (or creates) the store at path and initializes the schema,
// including the synchronizer's index tables. An empty path opens an
// in-memory store for testing.
func Open(path string, syncer Synchronizer) (*SQLiteStore, error) {
	if syncer == nil {
		return nil, fmt.Errorf("store: synchronizer is required")
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: serializes statements and keeps the in-memory
	// variant coherent (each new conn would otherwise get a fresh DB).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL lets a concurrently running search process read a consistent
	// snapshot while one ingestion process writes.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, sync: syncer}

	if _, err := db.Exec(docsSchema + syncer.Schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

// DB exposes the underlying handle for read-side components (the query
// engine shares the store's snapshot-consistent connection).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// HashContent returns the sha256 hex digest used for change detection.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Upsert inserts or updates the document identified by (source, path).
//
// Re-ingesting identical content is a pure no-op: no write happens,
// ingested_at is untouched, the index is not visited. Otherwise the doc
// row and the index postings change inside one transaction, so either
// both are visible to subsequent queries or neither is.
func (s *SQLiteStore) Upsert(ctx context.Context, source, path, title, createdAt, content string) (UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Unchanged, fmt.Errorf("store is closed")
	}

	hash := HashContent(content)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unchanged, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var oldHash string
	err = tx.QueryRowContext(ctx,
		`SELECT id, content_hash FROM docs WHERE source = ? AND path = ?`,
		source, path).Scan(&id, &oldHash)

	switch {
	case err == sql.ErrNoRows:
		return s.insert(ctx, tx, source, path, title, createdAt, content, hash)
	case err != nil:
		return Unchanged, fmt.Errorf("lookup document: %w", err)
	case oldHash == hash:
		return Unchanged, nil
	default:
		return s.update(ctx, tx, id, title, createdAt, content, hash)
	}
}

func (s *SQLiteStore) insert(ctx context.Context, tx *sql.Tx, source, path, title, createdAt, content, hash string) (UpsertOutcome, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO docs(source, path, title, created_at, content, content_hash, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		source, path, title, nullable(createdAt), content, hash, now())
	if err != nil {
		return Unchanged, fmt.Errorf("insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Unchanged, fmt.Errorf("read inserted id: %w", err)
	}

	if err := s.sync.Insert(ctx, tx, id, title, content); err != nil {
		return Unchanged, fmt.Errorf("index insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, fmt.Errorf("commit: %w", err)
	}
	return Created, nil
}

func (s *SQLiteStore) update(ctx context.Context, tx *sql.Tx, id int64, title, createdAt, content, hash string) (UpsertOutcome, error) {
	if _, err := tx.ExecContext(ctx,
		`UPDATE docs SET title = ?, created_at = ?, content = ?, content_hash = ?, ingested_at = ? WHERE id = ?`,
		title, nullable(createdAt), content, hash, now(), id); err != nil {
		return Unchanged, fmt.Errorf("update document: %w", err)
	}

	// Two-phase: drop postings derived from the old content first, then
	// index the new content under the same surrogate key.
	if err := s.sync.Remove(ctx, tx, id); err != nil {
		return Unchanged, fmt.Errorf("index remove: %w", err)
	}
	if err := s.sync.Insert(ctx, tx, id, title, content); err != nil {
		return Unchanged, fmt.Errorf("index insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, fmt.Errorf("commit: %w", err)
	}
	return Updated, nil
}

// Get returns the live document for (source, path), or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, source, path string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, path, title, COALESCE(created_at, ''), content, content_hash, ingested_at
		 FROM docs WHERE source = ? AND path = ?`, source, path)
	return scanDocument(row)
}

// GetByID returns the document with the given surrogate key.
func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, path, title, COALESCE(created_at, ''), content, content_hash, ingested_at
		 FROM docs WHERE id = ?`, id)
	return scanDocument(row)
}

// Delete removes the document and its postings in one transaction.
// Returns ErrNotFound if no live document exists for the key.
func (s *SQLiteStore) Delete(ctx context.Context, source, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM docs WHERE source = ? AND path = ?`, source, path).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.sync.Remove(ctx, tx, id); err != nil {
		return fmt.Errorf("index remove: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Stats reports document, term, and token counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&st.DocumentCount); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT term) FROM postings`).Scan(&st.TermCount); err != nil {
		return nil, fmt.Errorf("count terms: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(token_count), 0) FROM doc_lengths`).Scan(&st.TotalTokens); err != nil {
		return nil, fmt.Errorf("sum tokens: %w", err)
	}

	if st.DocumentCount > 0 {
		st.AvgDocLength = float64(st.TotalTokens) / float64(st.DocumentCount)
	}
	return st, nil
}

// Close closes the store. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var ingested string
	err := row.Scan(&d.ID, &d.Source, &d.Path, &d.Title, &d.CreatedAt, &d.Content, &d.ContentHash, &ingested)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}

	d.IngestedAt, err = time.Parse(TimeFormat, ingested)
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeStoreCorrupt,
			fmt.Sprintf("parse ingested_at %q", ingested), err)
	}
	return &d, nil
}

func now() string {
	return time.Now().UTC().Format(TimeFormat)
}

// nullable maps the empty string to SQL NULL for optional columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
