package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ygrebnov/errorc"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is the base error for configuration validation failures.
var ErrInvalidConfig = errors.New("cli: invalid configuration")

// Config is the optional YAML configuration file for seqlite commands.
type Config struct {
	// Database is the path to the SQLite database file.
	Database string `yaml:"database"`

	// BusyTimeoutMS is the busy timeout applied to the handle, in
	// milliseconds. Zero keeps the default (1000).
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`

	// PoolSize bounds concurrent blocking operations. Zero keeps the
	// default.
	PoolSize int `yaml:"pool_size"`

	// Extensions are SQLite extension paths loaded right after open.
	Extensions []string `yaml:"extensions"`
}

// BusyTimeout returns the configured busy timeout as a duration, or zero
// when unset.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// Validate checks field constraints. The database path may still come from
// the --db flag, so it is only required at command run time.
func (c *Config) Validate() error {
	if c.BusyTimeoutMS < 0 {
		return errorc.With(ErrInvalidConfig,
			errorc.String("field", "busy_timeout_ms"),
			errorc.String("reason", "must not be negative"))
	}
	if c.PoolSize < 0 {
		return errorc.With(ErrInvalidConfig,
			errorc.String("field", "pool_size"),
			errorc.String("reason", "must not be negative"))
	}
	for _, ext := range c.Extensions {
		if ext == "" {
			return errorc.With(ErrInvalidConfig,
				errorc.String("field", "extensions"),
				errorc.String("reason", "entries must not be empty"))
		}
	}
	return nil
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveConfig merges the optional config file with command flags. Flags
// win over file values.
func resolveConfig(configPath, dbFlag string) (*Config, error) {
	cfg := &Config{}
	if configPath != "" {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dbFlag != "" {
		cfg.Database = dbFlag
	}
	if cfg.Database == "" {
		return nil, errorc.With(ErrInvalidConfig,
			errorc.String("field", "database"),
			errorc.String("reason", "required (set --db or the config file)"))
	}
	return cfg, nil
}
