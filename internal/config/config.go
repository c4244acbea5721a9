// Package config loads the application configuration: defaults first, then
// an optional YAML file, then environment overrides, then validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"chatgrep/internal/api"
	"chatgrep/internal/archive"
	"chatgrep/internal/ingest"
	"chatgrep/internal/legacy"
	"chatgrep/internal/migrate"
	"chatgrep/internal/search"
	"chatgrep/internal/store/es"
)

// Config holds the application configuration.
type Config struct {
	Logging   LoggingConfig       `yaml:"logging"`
	Store     es.Config           `yaml:"store"`
	Legacy    legacy.Config       `yaml:"legacy"`
	Ingest    ingest.Config       `yaml:"ingest"`
	Bus       ingest.SourceConfig `yaml:"bus"`
	API       api.ServerConfig    `yaml:"api"`
	Search    search.Config       `yaml:"search"`
	Migration migrate.Config      `yaml:"migration"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Logging: DefaultLoggingConfig(),
		Store: es.Config{
			Addresses: []string{"http://localhost:9200"},
			Index:     "chat_messages",
		},
		Legacy:    legacy.DefaultConfig(),
		Ingest:    ingest.DefaultConfig(),
		Bus:       ingest.DefaultSourceConfig(),
		API:       api.DefaultServerConfig(),
		Search:    search.DefaultConfig(),
		Migration: migrate.DefaultConfig(),
	}
}

// Load reads the configuration. A missing file is not an error; the defaults
// plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults + env only.
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override the file without
// editing it. Only the connection-level settings are exposed this way.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CHATGREP_ES_ADDRESSES"); v != "" {
		c.Store.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("CHATGREP_ES_INDEX"); v != "" {
		c.Store.Index = v
	}
	if v := os.Getenv("CHATGREP_ES_USERNAME"); v != "" {
		c.Store.Username = v
	}
	if v := os.Getenv("CHATGREP_ES_PASSWORD"); v != "" {
		c.Store.Password = v
	}
	if v := os.Getenv("CHATGREP_MONGO_URI"); v != "" {
		c.Legacy.URI = v
	}
	if v := os.Getenv("CHATGREP_MONGO_DATABASE"); v != "" {
		c.Legacy.Database = v
	}
	if v := os.Getenv("CHATGREP_MONGO_COLLECTION"); v != "" {
		c.Legacy.Collection = v
	}
	if v := os.Getenv("CHATGREP_NATS_URL"); v != "" {
		c.Bus.URL = v
	}
	if v := os.Getenv("CHATGREP_LOG_LEVEL"); v != "" {
		c.Logging.Console.Level = v
	}
	if v := os.Getenv("CHATGREP_MIGRATION_DRY_RUN"); v != "" {
		if dryRun, err := strconv.ParseBool(v); err == nil {
			c.Migration.DryRun = dryRun
		}
	}
	if v := os.Getenv("CHATGREP_MIGRATION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Migration.BatchSize = n
		}
	}
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if len(c.Store.Addresses) == 0 {
		return fmt.Errorf("store.addresses must not be empty")
	}
	if c.Store.Index == "" {
		return fmt.Errorf("store.index must not be empty")
	}
	if c.Legacy.URI == "" {
		return fmt.Errorf("legacy.uri must not be empty")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	if c.Ingest.FlushInterval <= 0 {
		return fmt.Errorf("ingest.flush_interval must be positive")
	}
	if c.Bus.Subject == "" {
		return fmt.Errorf("bus.subject must not be empty")
	}
	if c.Migration.BatchSize <= 0 {
		return fmt.Errorf("migration.batch_size must be positive")
	}
	if c.Migration.Kind != "" && archive.ParseKind(string(c.Migration.Kind)) != c.Migration.Kind {
		return fmt.Errorf("migration.kind %q is not a known message kind", c.Migration.Kind)
	}
	return nil
}
