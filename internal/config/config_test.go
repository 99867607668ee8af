// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HiveFrame Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiveframe/hiveframe/pkg/errutil"
)

func serveFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("http-addr", ":8000", "")
	flags.String("metrics-addr", "127.0.0.1:9100", "")
	flags.String("database-url", "", "")
	flags.String("log-format", "json", "")
	flags.Int("engine.rows", 3, "")
	flags.Int("engine.cols", 3, "")
	flags.Int("engine.win-length", 3, "")
	flags.Bool("reaper.enabled", false, "")
	flags.Duration("reaper.interval", time.Minute, "")
	flags.Duration("reaper.max-idle", 30*time.Minute, "")
	return flags
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FlagDefaults(t *testing.T) {
	cfg, err := Load("", serveFlags())
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 3, cfg.Engine.Rows)
	assert.Equal(t, 3, cfg.Engine.WinLength)
	assert.False(t, cfg.Reaper.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Reaper.MaxIdle)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
http-addr: ":9000"
log-format: text
engine:
  rows: 4
  cols: 5
  win-length: 4
reaper:
  enabled: true
  interval: 30s
  max-idle: 10m
`)

	cfg, err := Load(path, serveFlags())
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 4, cfg.Engine.Rows)
	assert.Equal(t, 5, cfg.Engine.Cols)
	assert.True(t, cfg.Reaper.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Reaper.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Reaper.MaxIdle)
}

func TestLoad_ChangedFlagsWinOverFile(t *testing.T) {
	path := writeConfigFile(t, `http-addr: ":9000"`)

	flags := serveFlags()
	require.NoError(t, flags.Set("http-addr", ":7000"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestLoad_DatabaseURLFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/db")

	cfg, err := Load("", serveFlags())
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host/db", cfg.DatabaseURL)
}

func TestLoad_FlagBeatsEnvForDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/db")

	flags := serveFlags()
	require.NoError(t, flags.Set("database-url", "postgres://flag-host/db"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag-host/db", cfg.DatabaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml", serveFlags())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "http-addr: [unterminated")

	_, err := Load(path, serveFlags())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPAddr:  ":8000",
			LogFormat: "json",
			Engine:    EngineConfig{Rows: 3, Cols: 3, WinLength: 3},
			Reaper:    ReaperConfig{Interval: time.Minute, MaxIdle: time.Hour},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing http addr", func(c *Config) { c.HTTPAddr = "" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"zero rows", func(c *Config) { c.Engine.Rows = 0 }},
		{"win length too small", func(c *Config) { c.Engine.WinLength = 1 }},
		{"reaper enabled without interval", func(c *Config) {
			c.Reaper.Enabled = true
			c.Reaper.Interval = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
