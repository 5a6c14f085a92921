package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	verrors "github.com/agentvault/agentvault/internal/errors"
)

// PerplexityProducer scans <vault>/perplexity for markdown and plain
// text exports.
type PerplexityProducer struct {
	vaultDir string
}

// NewPerplexityProducer creates a producer rooted at the vault directory.
func NewPerplexityProducer(vaultDir string) *PerplexityProducer {
	return &PerplexityProducer{vaultDir: vaultDir}
}

// Source implements Producer.
func (p *PerplexityProducer) Source() string { return "perplexity" }

var firstHeading = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// Produce implements Producer.
func (p *PerplexityProducer) Produce(ctx context.Context, out chan<- Document) error {
	base := filepath.Join(p.vaultDir, "perplexity")
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil
	}

	return filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return verrors.New(verrors.ErrCodeVaultUnreadable, fmt.Sprintf("scan %s", base), err)
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".md", ".txt":
		default:
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skip unreadable export", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		text := string(raw)

		title := ""
		if m := firstHeading.FindStringSubmatch(text); m != nil {
			title = strings.TrimSpace(m[1])
		}
		if title == "" {
			title = "Perplexity export: " + filepath.Base(path)
		}

		rel, relErr := filepath.Rel(p.vaultDir, path)
		if relErr != nil {
			rel = path
		}
		send(ctx, out, Document{
			Source:  p.Source(),
			Path:    filepath.ToSlash(rel),
			Title:   title,
			Content: strings.TrimSpace(text),
		})
		return nil
	})
}
