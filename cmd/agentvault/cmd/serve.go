package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentvault/agentvault/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Serve vault search to MCP clients (Claude Code, Cursor) over
stdio. Stdout carries JSON-RPC exclusively; diagnostics go to the log
file when --debug is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
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

	srv, err := mcp.NewServer(engine)
	if err != nil {
		return err
	}
	return srv.Serve(cmd.Context())
}
