// Package config provides configuration management for backlogd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/backlogd/backlogd/internal/util"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// Dir is the backlogd configuration directory
	Dir = ".backlogd"
)

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	// Dialect is "sqlite" (default) or "postgres"
	Dialect string `yaml:"dialect"`

	// DSN is the file path for sqlite or the connection string for postgres.
	// Empty means .backlogd/backlogd.db in the working directory.
	DSN string `yaml:"dsn,omitempty"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	// TTLSeconds bounds read-through cache entries (default 300)
	TTLSeconds int `yaml:"ttl_seconds"`
}

// LogConfig tunes structured logging.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info)
	Level string `yaml:"level"`
}

// Config is the top-level backlogd configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Dialect: "sqlite"},
		Cache:    CacheConfig{TTLSeconds: 300},
		Log:      LogConfig{Level: "info"},
	}
}

// CacheTTL returns the configured cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// DatabaseDSN returns the configured DSN, defaulting to the sqlite file
// under the config directory.
func (c *Config) DatabaseDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	return filepath.Join(Dir, "backlogd.db")
}

// Load reads configuration from the given file, filling unset fields with
// defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads configuration from dir/.backlogd/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, Dir, ConfigFileName))
}

// Validate checks field values.
func (c *Config) Validate() error {
	switch c.Database.Dialect {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pg":
	default:
		return fmt.Errorf("config: unknown database dialect %q", c.Database.Dialect)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}

// Save writes the configuration to the given file, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
