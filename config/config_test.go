package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhamidi/sapling/sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, sitter.DefaultMaxRecoveryAttempts, cfg.Parser.MaxRecoveryAttempts)
	assert.True(t, cfg.Parser.Incremental)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce())
	assert.Equal(t, "stdio", cfg.LSP.Transport)
	assert.Empty(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[log]
verbosity = 2

[parser]
max_recovery_attempts = 12
incremental = false

[watch]
debounce_ms = 250
extensions = [".baml", ".jinja"]

[lsp]
transport = "tcp"
address = ":9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, 12, cfg.Parser.MaxRecoveryAttempts)
	assert.False(t, cfg.Parser.Incremental)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce())
	assert.Equal(t, []string{".baml", ".jinja"}, cfg.Watch.Extensions)
	assert.Equal(t, []string{".git", "node_modules", "baml_client"}, cfg.Watch.Exclude, "unset keys keep defaults")
	assert.Equal(t, LSPConfig{Transport: "tcp", Address: ":9000"}, cfg.LSP)
	assert.Len(t, cfg.Parser.Options(), 2)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Load(writeConfig(t, "[parser\nincremental = true\n"))
	assert.ErrorContains(t, err, "load config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SAPLING_LOG_VERBOSITY", "4")
	t.Setenv("SAPLING_MAX_RECOVERY_ATTEMPTS", "3")
	t.Setenv("SAPLING_INCREMENTAL", "false")
	t.Setenv("SAPLING_WATCH_DEBOUNCE_MS", "not a number")
	t.Setenv("SAPLING_LSP_TRANSPORT", "tcp")

	cfg, err := Load(writeConfig(t, "[parser]\nmax_recovery_attempts = 9\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Log.Verbosity)
	assert.Equal(t, 3, cfg.Parser.MaxRecoveryAttempts)
	assert.False(t, cfg.Parser.Incremental)
	assert.Equal(t, 100, cfg.Watch.DebounceMs, "unparsable values are ignored")
	assert.Equal(t, "tcp", cfg.LSP.Transport)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"debounce too low", func(c *Config) { c.Watch.DebounceMs = 5 }, "Watch debounce must be at least 10ms"},
		{"debounce too high", func(c *Config) { c.Watch.DebounceMs = 70000 }, "Watch debounce exceeds reasonable maximum (60000ms)"},
		{"recovery attempts", func(c *Config) { c.Parser.MaxRecoveryAttempts = 0 }, "Parser max_recovery_attempts must be at least 1"},
		{"extension", func(c *Config) { c.Watch.Extensions = []string{"baml"} }, `Watch extension "baml" must start with a dot`},
		{"transport", func(c *Config) { c.LSP.Transport = "pipe" }, `LSP transport "pipe" is not one of stdio, tcp`},
		{"tcp address", func(c *Config) { c.LSP = LSPConfig{Transport: "tcp"} }, "LSP address cannot be empty with the tcp transport"},
		{"verbosity", func(c *Config) { c.Log.Verbosity = 9 }, "Log verbosity must be between 0 and 5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Equal(t, []string{tt.want}, Validate(cfg))
		})
	}
}

func TestWatchMatches(t *testing.T) {
	w := DefaultConfig().Watch
	assert.True(t, w.Matches("baml_src/main.baml"))
	assert.False(t, w.Matches("baml_src/main.go"))
	assert.False(t, w.Matches("baml_client/inlinedbaml.baml"))
	assert.False(t, w.Matches("a/node_modules/x.baml"))
	assert.True(t, w.Excludes("project/.git"))
	assert.False(t, w.Excludes("project/src"))
}
