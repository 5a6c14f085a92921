package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	verrors "github.com/agentvault/agentvault/internal/errors"
	"github.com/agentvault/agentvault/internal/store"
)

// Driver runs producers concurrently and funnels their documents
// through a single upsert loop, so the store only ever sees one writer.
type Driver struct {
	store     *store.SQLiteStore
	producers []Producer
	lockPath  string
}

// NewDriver creates an ingestion driver. lockPath guards against a
// second ingesting process on the same data directory; empty disables
// locking (tests, in-memory stores).
func NewDriver(st *store.SQLiteStore, lockPath string, producers ...Producer) *Driver {
	return &Driver{store: st, producers: producers, lockPath: lockPath}
}

// Run ingests every producer's documents and returns the number of
// created or updated documents per source. Unchanged documents are
// counted as seen but not reported.
func (d *Driver) Run(ctx context.Context) (map[string]int, error) {
	unlock, err := d.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Cancelling unblocks producers mid-send when the writer loop bails
	// out early on a store error; without it they would sit on the full
	// channel forever.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	docs := make(chan Document, 64)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range d.producers {
		g.Go(func() error {
			return p.Produce(gctx, docs)
		})
	}
	go func() {
		// The writer loop ends when every producer is done.
		_ = g.Wait()
		close(docs)
	}()

	counts := make(map[string]int)
	for _, p := range d.producers {
		counts[p.Source()] = 0
	}

	changed := 0
	start := time.Now()
	for doc := range docs {
		outcome, err := d.store.Upsert(gctx, doc.Source, doc.Path, doc.Title, doc.CreatedAt, doc.Content)
		if err != nil {
			return nil, verrors.StoreError("upsert "+doc.Path, err)
		}
		// Every successfully processed document counts, unchanged ones
		// included; the summary answers "how much was ingested", not
		// "how much changed".
		counts[doc.Source]++
		if outcome != store.Unchanged {
			changed++
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("ingest_complete",
		slog.Int("changed", changed),
		slog.Any("counts", counts),
		slog.Duration("elapsed", time.Since(start)))

	return counts, nil
}

// acquireLock takes the cross-process writer lock.
func (d *Driver) acquireLock(ctx context.Context) (func(), error) {
	if d.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return nil, verrors.StoreError("create lock directory", err)
	}

	fl := flock.New(d.lockPath)
	locked, err := fl.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, verrors.StoreError("acquire writer lock", err)
	}
	if !locked {
		return nil, verrors.New(verrors.ErrCodeStoreLocked, "another ingestion is running", nil)
	}
	return func() { _ = fl.Unlock() }, nil
}
