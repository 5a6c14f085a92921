// Package cmd provides the CLI commands for AgentVault.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentvault/agentvault/internal/config"
	verrors "github.com/agentvault/agentvault/internal/errors"
	"github.com/agentvault/agentvault/internal/index"
	"github.com/agentvault/agentvault/internal/logging"
	"github.com/agentvault/agentvault/internal/output"
	"github.com/agentvault/agentvault/internal/search"
	"github.com/agentvault/agentvault/internal/store"
	"github.com/agentvault/agentvault/pkg/version"
)

var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the agentvault CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agentvault",
		Short: "Searchable archive for AI conversation exports",
		Long: `AgentVault ingests exported conversations from AI assistants
(ChatGPT, Perplexity) into a local SQLite vault and serves ranked
full-text search over them, as a CLI and as an MCP server.

Drop export files under vault/<source>/ and run 'agentvault ingest'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("agentvault version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.agentvault/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default agentvault.yaml)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables file logging when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command with signal-aware cancellation. Errors
// are reported on stderr here, once, since cobra's own reporting is
// silenced.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		slog.Error("command failed",
			slog.String("category", string(verrors.GetCategory(err))),
			slog.String("error", err.Error()))
		output.Stderr().Errorf("%v", err)
	}
	return err
}

// loadConfig loads configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// openStore opens the vault store with the index synchronizer wired in.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.Open(cfg.DBPath(), index.NewSynchronizer())
	if err != nil {
		return nil, verrors.New(verrors.ErrCodeStoreOpen, "open store "+cfg.DBPath(), err)
	}
	return st, nil
}

// newEngine builds a search engine from config.
func newEngine(st *store.SQLiteStore, cfg *config.Config) (*search.Engine, error) {
	sc := search.DefaultConfig()
	sc.K1 = cfg.Search.K1
	sc.B = cfg.Search.B
	sc.DefaultLimit = cfg.Search.DefaultLimit
	sc.SnippetTokens = cfg.Search.SnippetTokens
	return search.New(st, sc)
}
