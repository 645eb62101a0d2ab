// Package config loads .sapling.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dhamidi/sapling/sitter"
	"github.com/tliron/commonlog"
)

// FileName is the project configuration file looked up by Load.
const FileName = ".sapling.toml"

var log = commonlog.GetLogger("sapling.config")

type Config struct {
	Log    LogConfig    `toml:"log"`
	Parser ParserConfig `toml:"parser"`
	Watch  WatchConfig  `toml:"watch"`
	LSP    LSPConfig    `toml:"lsp"`
}

type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

type ParserConfig struct {
	MaxRecoveryAttempts int  `toml:"max_recovery_attempts"`
	Incremental         bool `toml:"incremental"`
}

type WatchConfig struct {
	DebounceMs int      `toml:"debounce_ms"`
	Extensions []string `toml:"extensions"`
	Exclude    []string `toml:"exclude"`
}

type LSPConfig struct {
	Transport string `toml:"transport"`
	Address   string `toml:"address"`
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Verbosity: 0,
		},
		Parser: ParserConfig{
			MaxRecoveryAttempts: sitter.DefaultMaxRecoveryAttempts,
			Incremental:         true,
		},
		Watch: WatchConfig{
			DebounceMs: 100,
			Extensions: []string{".baml"},
			Exclude:    []string{".git", "node_modules", "baml_client"},
		},
		LSP: LSPConfig{
			Transport: "stdio",
			Address:   "127.0.0.1:7999",
		},
	}
}

// Load reads the configuration at path on top of the defaults. With an
// empty path it tries FileName in the working directory and then the user
// configuration directory; finding neither is not an error. SAPLING_*
// environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		for _, loc := range defaultLocations() {
			err := decodeFile(loc, cfg)
			if err == nil {
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultLocations() []string {
	locations := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations, filepath.Join(dir, "sapling", "config.toml"))
	}
	return locations
}

func decodeFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warningf("%s: unknown key %s", path, key)
	}
	log.Debugf("loaded config from %s", path)
	return nil
}

// Validate returns a warning per questionable setting.
func Validate(cfg *Config) []string {
	var warnings []string

	if cfg.Log.Verbosity < 0 || cfg.Log.Verbosity > 5 {
		warnings = append(warnings, "Log verbosity must be between 0 and 5")
	}

	if cfg.Parser.MaxRecoveryAttempts < 1 {
		warnings = append(warnings, "Parser max_recovery_attempts must be at least 1")
	}
	if cfg.Parser.MaxRecoveryAttempts > 1000 {
		warnings = append(warnings, "Parser max_recovery_attempts exceeds reasonable maximum (1000)")
	}

	if cfg.Watch.DebounceMs < 10 {
		warnings = append(warnings, "Watch debounce must be at least 10ms")
	}
	if cfg.Watch.DebounceMs > 60000 {
		warnings = append(warnings, "Watch debounce exceeds reasonable maximum (60000ms)")
	}
	for _, ext := range cfg.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			warnings = append(warnings, fmt.Sprintf("Watch extension %q must start with a dot", ext))
		}
	}

	switch cfg.LSP.Transport {
	case "stdio":
	case "tcp":
		if cfg.LSP.Address == "" {
			warnings = append(warnings, "LSP address cannot be empty with the tcp transport")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("LSP transport %q is not one of stdio, tcp", cfg.LSP.Transport))
	}

	return warnings
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAPLING_LOG_VERBOSITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Log.Verbosity = i
		}
	}
	if v := os.Getenv("SAPLING_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("SAPLING_MAX_RECOVERY_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Parser.MaxRecoveryAttempts = i
		}
	}
	if v := os.Getenv("SAPLING_INCREMENTAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Parser.Incremental = b
		}
	}
	if v := os.Getenv("SAPLING_WATCH_DEBOUNCE_MS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Watch.DebounceMs = i
		}
	}
	if v := os.Getenv("SAPLING_LSP_TRANSPORT"); v != "" {
		cfg.LSP.Transport = v
	}
	if v := os.Getenv("SAPLING_LSP_ADDRESS"); v != "" {
		cfg.LSP.Address = v
	}
}

// Options turns the parser settings into parser options.
func (c ParserConfig) Options() []sitter.Option {
	opts := []sitter.Option{sitter.WithMaxRecoveryAttempts(c.MaxRecoveryAttempts)}
	if !c.Incremental {
		opts = append(opts, sitter.WithoutReuse())
	}
	return opts
}

func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Matches reports whether path has a watched extension and is not
// excluded.
func (c WatchConfig) Matches(path string) bool {
	if c.Excludes(path) {
		return false
	}
	ext := filepath.Ext(path)
	for _, want := range c.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// Excludes reports whether an element of path is in the exclude list.
func (c WatchConfig) Excludes(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, ex := range c.Exclude {
			if part == ex {
				return true
			}
		}
	}
	return false
}
