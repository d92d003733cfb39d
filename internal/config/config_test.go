package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "wayfinder", cfg.Logger.ServiceName)

	assert.Equal(t, "memory", cfg.Database.Backend)
	assert.Equal(t, 10*time.Second, cfg.Database.ConnectTimeout)

	assert.Equal(t, ":8474", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, 10, cfg.Engine.MaxSteps)
	assert.InDelta(t, 0.5, cfg.Engine.UnseenEdgePrior, 1e-9)
	assert.InDelta(t, 0.35, cfg.Engine.SimilarityFloor, 1e-9)
	assert.InDelta(t, 0.6, cfg.Engine.TitleWeight, 1e-9)
	assert.InDelta(t, 0.25, cfg.Engine.StructureWeight, 1e-9)
	assert.InDelta(t, 0.15, cfg.Engine.SemanticWeight, 1e-9)
	assert.Equal(t, 5, cfg.Engine.RetrievalTopK)
	assert.Equal(t, 256, cfg.Engine.HistoryCap)

	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dim)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	yaml := `
server:
  addr: ":9090"
engine:
  max_steps: 4
  similarity_floor: 0.5
database:
  backend: postgres
  dsn: "postgres://wayfinder@localhost/wayfinder"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Engine.MaxSteps)
	assert.InDelta(t, 0.5, cfg.Engine.SimilarityFloor, 1e-9)
	assert.Equal(t, "postgres", cfg.Database.Backend)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.5, cfg.Engine.UnseenEdgePrior, 1e-9)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WAYFINDER_SERVER_ADDR", ":7070")
	t.Setenv("WAYFINDER_LOGGER_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	// Environment wins over the file.
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not-a-map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "postgres backend requires a dsn",
			mutate:  func(c *Config) { c.Database.Backend = "postgres" },
			wantErr: "database.dsn",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Database.Backend = "redis" },
			wantErr: "unknown database backend",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "openai" },
			wantErr: "unknown embedding provider",
		},
		{
			name:    "prior must stay in range",
			mutate:  func(c *Config) { c.Engine.UnseenEdgePrior = 1.5 },
			wantErr: "unseen_edge_prior",
		},
		{
			name:    "zero prior rejected",
			mutate:  func(c *Config) { c.Engine.UnseenEdgePrior = 0 },
			wantErr: "unseen_edge_prior",
		},
		{
			name:    "max steps must be positive",
			mutate:  func(c *Config) { c.Engine.MaxSteps = 0 },
			wantErr: "max_steps",
		},
		{
			name: "floor above threshold rejected",
			mutate: func(c *Config) {
				c.Engine.MatchFloor = 0.9
				c.Engine.MatchThreshold = 0.5
			},
			wantErr: "match_floor",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
