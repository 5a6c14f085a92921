package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	verrors "github.com/agentvault/agentvault/internal/errors"
)

// Watch re-runs reingest whenever files under dir change, after a quiet
// period of debounce. Rapid event bursts (an export being unpacked)
// collapse into one run. Blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, debounce time.Duration, reingest func(context.Context) error) error {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return verrors.ProducerError("create watcher", err)
	}
	defer func() { _ = w.Close() }()

	if err := addRecursive(w, dir); err != nil {
		return err
	}

	var mu sync.Mutex
	var timer *time.Timer
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := reingest(ctx); err != nil {
				slog.Error("watch reingest failed", slog.Any("error", err))
			}
		})
	}
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	slog.Info("watching vault", slog.String("dir", dir), slog.Duration("debounce", debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			// New subdirectories need their own watch before their
			// contents generate events.
			if event.Op.Has(fsnotify.Create) {
				if err := addRecursive(w, event.Name); err != nil {
					slog.Warn("watch new path", slog.String("path", event.Name), slog.Any("error", err))
				}
			}
			schedule()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.Any("error", err))
		}
	}
}

// addRecursive watches path and every directory below it. Non-directory
// paths are ignored.
func addRecursive(w *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may have vanished between event and walk.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(p); err != nil {
			return verrors.New(verrors.ErrCodeVaultUnreadable, "watch "+p, err)
		}
		return nil
	})
}
