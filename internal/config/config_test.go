package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/agentvault/agentvault/internal/errors"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "vault", cfg.Paths.VaultDir)
	assert.Equal(t, "data", cfg.Paths.DataDir)
	assert.Equal(t, 1.2, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, 8, cfg.Search.DefaultLimit)
	assert.Equal(t, 12, cfg.Search.SnippetTokens)
	assert.Equal(t, 2*time.Second, cfg.Ingest.WatchDebounce)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, verrors.ErrCodeConfigNotFound, verrors.GetCode(err))

	// Implicit lookup of a missing default file is not an error.
	t.Chdir(t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoad_InvalidYAMLReportsConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeConfigInvalid, verrors.GetCode(err))
	assert.Equal(t, verrors.CategoryConfig, verrors.GetCategory(err))
}

func TestLoad_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentvault.yaml")
	yaml := `
version: 1
paths:
  vault_dir: /srv/exports
  data_dir: /srv/state
search:
  bm25_k1: 1.5
  default_limit: 20
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/exports", cfg.Paths.VaultDir)
	assert.Equal(t, "/srv/state", cfg.Paths.DataDir)
	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	// Unset fields keep defaults.
	assert.Equal(t, 0.75, cfg.Search.B)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTVAULT_VAULT_DIR", "/env/vault")
	t.Setenv("AGENTVAULT_BM25_B", "0.5")
	t.Setenv("AGENTVAULT_DEFAULT_LIMIT", "3")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/vault", cfg.Paths.VaultDir)
	assert.Equal(t, 0.5, cfg.Search.B)
	assert.Equal(t, 3, cfg.Search.DefaultLimit)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty vault dir", func(c *Config) { c.Paths.VaultDir = "" }},
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }},
		{"negative k1", func(c *Config) { c.Search.K1 = -1 }},
		{"b out of range", func(c *Config) { c.Search.B = 1.5 }},
		{"zero limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"zero snippet window", func(c *Config) { c.Search.SnippetTokens = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDBPath(t *testing.T) {
	cfg := New()
	cfg.Paths.DataDir = "/srv/state"

	assert.Equal(t, filepath.Join("/srv/state", "agentvault.db"), cfg.DBPath())
	assert.Equal(t, filepath.Join("/srv/state", "agentvault.lock"), cfg.LockPath())
}
