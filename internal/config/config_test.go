package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatgrep/internal/archive"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Store.Addresses)
	assert.Equal(t, "chat_messages", cfg.Store.Index)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Legacy.URI)
	assert.Equal(t, 100, cfg.Ingest.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Ingest.FlushInterval)
	assert.Equal(t, "chat.messages", cfg.Bus.Subject)
	assert.Equal(t, 500, cfg.Migration.BatchSize)
	assert.False(t, cfg.Migration.DryRun)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
store:
  addresses: ["http://es1:9200", "http://es2:9200"]
  index: archive
ingest:
  batch_size: 250
  flush_interval: 500ms
migration:
  batch_size: 50
  kind: photo
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Store.Addresses)
	assert.Equal(t, "archive", cfg.Store.Index)
	assert.Equal(t, 250, cfg.Ingest.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Ingest.FlushInterval)
	assert.Equal(t, 50, cfg.Migration.BatchSize)
	assert.Equal(t, archive.KindPhoto, cfg.Migration.Kind)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, "mongodb://localhost:27017", cfg.Legacy.URI)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
store:
  index: from_file
`)
	t.Setenv("CHATGREP_ES_ADDRESSES", "http://a:9200,http://b:9200")
	t.Setenv("CHATGREP_ES_INDEX", "from_env")
	t.Setenv("CHATGREP_MONGO_URI", "mongodb://prod:27017")
	t.Setenv("CHATGREP_MIGRATION_DRY_RUN", "true")
	t.Setenv("CHATGREP_MIGRATION_BATCH_SIZE", "75")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a:9200", "http://b:9200"}, cfg.Store.Addresses)
	assert.Equal(t, "from_env", cfg.Store.Index)
	assert.Equal(t, "mongodb://prod:27017", cfg.Legacy.URI)
	assert.True(t, cfg.Migration.DryRun)
	assert.Equal(t, 75, cfg.Migration.BatchSize)
}

func TestLoadUnparseableFile(t *testing.T) {
	path := writeConfigFile(t, "store: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no store addresses":     func(c *Config) { c.Store.Addresses = nil },
		"empty index":            func(c *Config) { c.Store.Index = "" },
		"empty mongo uri":        func(c *Config) { c.Legacy.URI = "" },
		"zero ingest batch":      func(c *Config) { c.Ingest.BatchSize = 0 },
		"zero flush interval":    func(c *Config) { c.Ingest.FlushInterval = 0 },
		"empty bus subject":      func(c *Config) { c.Bus.Subject = "" },
		"zero migration batch":   func(c *Config) { c.Migration.BatchSize = 0 },
		"unknown migration kind": func(c *Config) { c.Migration.Kind = "carrier_pigeon" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("known migration kind", func(t *testing.T) {
		cfg := Default()
		cfg.Migration.Kind = archive.KindVideo
		assert.NoError(t, cfg.Validate())
	})
}
