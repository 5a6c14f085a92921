// Package mcp exposes vault search to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentvault/agentvault/internal/search"
	"github.com/agentvault/agentvault/pkg/version"
)

// Server bridges AI clients with the vault search engine.
type Server struct {
	mcp    *mcp.Server
	engine *search.Engine
	logger *slog.Logger
}

// SearchInput defines the input schema for the search_vault tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query: terms, \"quoted phrases\", trailing-* prefixes"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 8"`
}

// SearchOutput defines the output schema for the search_vault tool.
type SearchOutput struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// NewServer creates an MCP server wrapping the given engine.
func NewServer(engine *search.Engine) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "AgentVault",
			Version: version.Version,
		},
		nil,
	)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_vault",
		Description: "Search archived AI conversations (ChatGPT, Perplexity exports). Supports multiple terms (AND), \"quoted phrases\", and trailing-* prefix matching. Returns ranked results with snippets.",
	}, s.searchHandler)

	return s, nil
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return "AgentVault", version.Version
}

// searchHandler is the MCP SDK handler for the search_vault tool.
func (s *Server) searchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query parameter is required")
	}

	results, err := s.engine.Search(ctx, input.Query, input.Limit)
	if err != nil {
		s.logger.Error("search_vault failed",
			slog.String("query", input.Query),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, err
	}

	return nil, SearchOutput{Query: input.Query, Results: results}, nil
}

// Serve runs the server over stdio until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
