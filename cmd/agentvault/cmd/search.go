package cmd

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	verrors "github.com/agentvault/agentvault/internal/errors"
	"github.com/agentvault/agentvault/internal/search"
)

// searchResponse is the stdout contract: pure JSON, stable field order.
type searchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vault",
		Long: `Search archived conversations with BM25 ranking.

Queries support multiple terms (implicit AND), "quoted phrases"
(exact adjacency), and trailing-* prefix matching.

Examples:
  agentvault search "rust borrow checker"
  agentvault search '"stack trace" panic' --limit 3
  agentvault search 'tokeniz*'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default from config)")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	engine, err := newEngine(st, cfg)
	if err != nil {
		return err
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", limit))

	results, err := engine.Search(cmd.Context(), query, limit)
	if err != nil {
		return verrors.QueryError(query, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(searchResponse{Query: query, Results: results})
}
