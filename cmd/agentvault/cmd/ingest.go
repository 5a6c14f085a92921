package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agentvault/agentvault/internal/config"
	"github.com/agentvault/agentvault/internal/ingest"
	"github.com/agentvault/agentvault/internal/output"
)

// ingestResponse is the stdout contract for a completed ingestion run.
type ingestResponse struct {
	Ingested map[string]int `json:"ingested"`
}

func newIngestCmd() *cobra.Command {
	var initOnly bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest export files from the vault directory",
		Long: `Scan vault/<source>/ directories for export files and load them
into the store. Unchanged files are skipped; changed files are
reindexed in place.

Examples:
  agentvault ingest
  agentvault ingest --init-only
  agentvault ingest --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd, initOnly, watch)
		},
	}

	cmd.Flags().BoolVar(&initOnly, "init-only", false, "Initialize the store schema and exit")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and re-ingest on vault changes")

	return cmd
}

func runIngest(cmd *cobra.Command, initOnly, watch bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Opening the store creates the schema, so --init-only is done here.
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if initOnly {
		return nil
	}

	driver := ingest.NewDriver(st, cfg.LockPath(), producersFor(cfg)...)

	counts, err := driver.Run(cmd.Context())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(ingestResponse{Ingested: counts}); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	// Watch mode: stdout already carried the initial summary; later
	// runs report on stderr so the JSON contract stays intact.
	out := output.Stderr()
	out.Statusf("👀", "watching %s (debounce %s)", cfg.Paths.VaultDir, cfg.Ingest.WatchDebounce)

	err = ingest.Watch(cmd.Context(), cfg.Paths.VaultDir, cfg.Ingest.WatchDebounce,
		func(ctx context.Context) error {
			counts, err := driver.Run(ctx)
			if err != nil {
				out.Errorf("reingest failed: %v", err)
				return err
			}
			slog.Info("reingest_complete", slog.Any("counts", counts))
			out.Statusf("🔄", "reingested %v", counts)
			return nil
		})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// producersFor builds producers for the enabled sources; an empty
// sources list enables everything.
func producersFor(cfg *config.Config) []ingest.Producer {
	registry := map[string]func(string) ingest.Producer{
		"chatgpt":    func(dir string) ingest.Producer { return ingest.NewChatGPTProducer(dir) },
		"perplexity": func(dir string) ingest.Producer { return ingest.NewPerplexityProducer(dir) },
	}

	names := cfg.Ingest.Sources
	if len(names) == 0 {
		names = []string{"chatgpt", "perplexity"}
	}

	var producers []ingest.Producer
	for _, name := range names {
		if build, ok := registry[name]; ok {
			producers = append(producers, build(cfg.Paths.VaultDir))
		} else {
			slog.Warn("unknown ingest source", slog.String("source", name))
		}
	}
	return producers
}
