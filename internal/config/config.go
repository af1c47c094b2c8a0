// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

// Package config loads scopekit configuration from defaults, an optional
// YAML file, and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/scopekit/scopekit/internal/xdg"
)

// Log configures structured logging output.
type Log struct {
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text,default=json"`
}

// Database configures the PostgreSQL connection.
type Database struct {
	URL string `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
}

// Metrics configures the observability HTTP server.
type Metrics struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=metrics/health listen address; empty disables the server"`
}

// Audit configures the audit trail.
type Audit struct {
	Enabled bool   `koanf:"enabled" json:"enabled,omitempty" jsonschema:"default=true"`
	Mode    string `koanf:"mode" json:"mode,omitempty" jsonschema:"enum=minimal,enum=denials_only,enum=all,default=denials_only"`
	OnCheck bool   `koanf:"on_check" json:"on_check,omitempty" jsonschema:"description=record permission checks in the audit trail,default=true"`
	WALPath string `koanf:"wal_path" json:"wal_path,omitempty" jsonschema:"description=fallback write-ahead log path; empty uses the XDG state directory"`
}

// Cache configures the in-memory role snapshot.
type Cache struct {
	StalenessThreshold time.Duration `koanf:"staleness_threshold" json:"staleness_threshold,omitempty" jsonschema:"type=string,description=deny checks when the snapshot is older than this; 0 disables staleness checks,default=0s"`
	RefreshInterval    time.Duration `koanf:"refresh_interval" json:"refresh_interval,omitempty" jsonschema:"type=string,description=periodic snapshot reload interval; 0 disables periodic refresh,default=30s"`
}

// Config is the root scopekit configuration.
type Config struct {
	Log      Log      `koanf:"log" json:"log,omitempty"`
	Database Database `koanf:"database" json:"database,omitempty"`
	Metrics  Metrics  `koanf:"metrics" json:"metrics,omitempty"`
	Audit    Audit    `koanf:"audit" json:"audit,omitempty"`
	Cache    Cache    `koanf:"cache" json:"cache,omitempty"`
}

// Default returns the built-in configuration defaults.
func Default() Config {
	return Config{
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{
			Addr: "127.0.0.1:9100",
		},
		Audit: Audit{
			Enabled: true,
			Mode:    "denials_only",
			OnCheck: true,
		},
		Cache: Cache{
			RefreshInterval: 30 * time.Second,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Audit.Mode {
	case "minimal", "denials_only", "all":
	default:
		return fmt.Errorf("audit.mode must be one of minimal, denials_only, all; got %q", c.Audit.Mode)
	}
	if c.Cache.StalenessThreshold < 0 {
		return fmt.Errorf("cache.staleness_threshold must not be negative, got %s", c.Cache.StalenessThreshold)
	}
	if c.Cache.RefreshInterval < 0 {
		return fmt.Errorf("cache.refresh_interval must not be negative, got %s", c.Cache.RefreshInterval)
	}
	return nil
}

// SlogLevel maps the configured log level to a slog.Level string
// understood by slog.Level.UnmarshalText.
func (c *Config) SlogLevel() string {
	return strings.ToUpper(c.Log.Level)
}

// flagKeys maps multi-word flag names to their config keys. Flags not
// listed here map by replacing dashes with dots.
var flagKeys = map[string]string{
	"audit-on-check":            "audit.on_check",
	"audit-wal-path":            "audit.wal_path",
	"cache-staleness-threshold": "cache.staleness_threshold",
	"cache-refresh-interval":    "cache.refresh_interval",
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", ".")
}

// DefaultPath returns the default config file path, or empty if the
// XDG config directory cannot be resolved.
func DefaultPath() string {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path,
// and the given flag set. A nil flag set skips the flag layer. When
// path is empty, the default config file is used if it exists; a
// missing file at the default path is not an error, but an explicit
// path that does not exist is.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if explicit {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
