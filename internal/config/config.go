// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

// Package config loads server configuration from an optional YAML file
// layered under command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EngineConfig configures the in-a-row rules engine.
type EngineConfig struct {
	Rows      int `koanf:"rows"`
	Cols      int `koanf:"cols"`
	WinLength int `koanf:"win-length"`
}

// ReaperConfig configures the idle-frame reaper.
type ReaperConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	MaxIdle  time.Duration `koanf:"max-idle"`
}

// Config holds the serve command's configuration.
type Config struct {
	HTTPAddr    string       `koanf:"http-addr"`
	MetricsAddr string       `koanf:"metrics-addr"`
	DatabaseURL string       `koanf:"database-url"`
	LogFormat   string       `koanf:"log-format"`
	Engine      EngineConfig `koanf:"engine"`
	Reaper      ReaperConfig `koanf:"reaper"`
}

// Load reads configuration from the YAML file at path (when non-empty)
// and overlays the given flag set. Flag defaults fill any key the file
// does not provide; changed flags win over the file. An unset database
// URL falls back to the DATABASE_URL environment variable.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return oops.Errorf("http-addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Errorf("log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.Engine.Rows < 1 || c.Engine.Cols < 1 {
		return oops.Errorf("engine board must have at least one row and column")
	}
	if c.Engine.WinLength < 2 {
		return oops.Errorf("engine win-length must be at least 2")
	}
	if c.Reaper.Enabled && (c.Reaper.Interval <= 0 || c.Reaper.MaxIdle <= 0) {
		return oops.Errorf("reaper interval and max-idle must be positive when the reaper is enabled")
	}
	return nil
}
