// Package config loads AgentVault configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	verrors "github.com/agentvault/agentvault/internal/errors"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = "agentvault.yaml"

// Config represents the complete AgentVault configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Ingest  IngestConfig  `yaml:"ingest" json:"ingest"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PathsConfig configures where exports are read from and state is kept.
type PathsConfig struct {
	// VaultDir holds raw export files, one subdirectory per source
	// (vault/chatgpt, vault/perplexity).
	VaultDir string `yaml:"vault_dir" json:"vault_dir"`

	// DataDir holds the SQLite store file.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures BM25 ranking and result shaping.
// K1 and B are overridable via AGENTVAULT_BM25_K1 / AGENTVAULT_BM25_B.
type SearchConfig struct {
	// K1 is the BM25 term frequency saturation parameter.
	K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`

	// B is the BM25 document length normalization parameter.
	B float64 `yaml:"bm25_b" json:"bm25_b"`

	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// SnippetTokens is the snippet window size in tokens.
	SnippetTokens int `yaml:"snippet_tokens" json:"snippet_tokens"`
}

// IngestConfig configures the ingestion driver.
type IngestConfig struct {
	// Sources enables export families; empty means all registered producers.
	Sources []string `yaml:"sources" json:"sources"`

	// WatchDebounce is the quiet period before re-ingesting in watch mode.
	WatchDebounce time.Duration `yaml:"watch_debounce" json:"watch_debounce"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			VaultDir: "vault",
			DataDir:  "data",
		},
		Search: SearchConfig{
			K1:            1.2,
			B:             0.75,
			DefaultLimit:  8,
			SnippetTokens: 12,
		},
		Ingest: IngestConfig{
			WatchDebounce: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given path. An empty path falls back
// to DefaultConfigFile in the working directory; a missing file yields
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := New()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, verrors.ConfigError(fmt.Sprintf("parse config %s", path), err)
		}
	case os.IsNotExist(err) && !explicit:
		// Defaults only.
	case os.IsNotExist(err):
		return nil, verrors.New(verrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file %s not found", path), err)
	default:
		return nil, verrors.ConfigError(fmt.Sprintf("read config %s", path), err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, verrors.ConfigError("invalid configuration", err)
	}
	return cfg, nil
}

// applyEnv applies AGENTVAULT_* environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("AGENTVAULT_VAULT_DIR"); v != "" {
		c.Paths.VaultDir = v
	}
	if v := os.Getenv("AGENTVAULT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("AGENTVAULT_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.K1 = f
		}
	}
	if v := os.Getenv("AGENTVAULT_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.B = f
		}
	}
	if v := os.Getenv("AGENTVAULT_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("AGENTVAULT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Paths.VaultDir == "" {
		return fmt.Errorf("paths.vault_dir must not be empty")
	}
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Search.K1 < 0 {
		return fmt.Errorf("search.bm25_k1 must be >= 0, got %g", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.bm25_b must be in [0, 1], got %g", c.Search.B)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be > 0, got %d", c.Search.DefaultLimit)
	}
	if c.Search.SnippetTokens <= 0 {
		return fmt.Errorf("search.snippet_tokens must be > 0, got %d", c.Search.SnippetTokens)
	}
	return nil
}

// DBPath returns the path of the SQLite store file.
func (c *Config) DBPath() string {
	return filepath.Join(c.Paths.DataDir, "agentvault.db")
}

// LockPath returns the path of the ingestion writer lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "agentvault.lock")
}
