// Package config assembles the server's runtime configuration from four
// layers in increasing precedence: built-in defaults, an optional YAML
// file, environment variables (MCPCORE_*), and finally CLI flags, which
// always win on conflict per §6.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	coreerrors "github.com/hanzoai/mcpcore/internal/errors"
)

// Config is the fully-resolved, immutable-after-startup server
// configuration.
type Config struct {
	Transport string `yaml:"transport" env:"MCPCORE_TRANSPORT"`
	Host      string `yaml:"host" env:"MCPCORE_HOST"`
	Port      int    `yaml:"port" env:"MCPCORE_PORT"`

	AllowPaths []string `yaml:"allow_paths" env:"MCPCORE_ALLOW_PATHS"`
	TrustedExec bool    `yaml:"trusted_exec" env:"MCPCORE_TRUSTED_EXEC"`

	DisableWriteTools  bool `yaml:"disable_write_tools" env:"MCPCORE_DISABLE_WRITE_TOOLS"`
	DisableSearchTools bool `yaml:"disable_search_tools" env:"MCPCORE_DISABLE_SEARCH_TOOLS"`

	AutoBackgroundSeconds int `yaml:"auto_background_seconds" env:"MCPCORE_AUTO_BACKGROUND_SECONDS"`
	ResponseTokenCap      int `yaml:"response_token_cap" env:"MCPCORE_RESPONSE_TOKEN_CAP"`
	MaxConcurrent         int `yaml:"max_concurrent" env:"MCPCORE_MAX_CONCURRENT"`

	StateRoot string `yaml:"state_root" env:"MCPCORE_STATE_ROOT"`

	LogPretty bool   `yaml:"log_pretty" env:"MCPCORE_LOG_PRETTY"`
	LogLevel  string `yaml:"log_level" env:"MCPCORE_LOG_LEVEL"`
}

// Default returns the built-in default configuration (layer 1).
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Transport:             "stdio",
		Host:                  "127.0.0.1",
		Port:                  8765,
		AutoBackgroundSeconds: 45,
		ResponseTokenCap:      25000,
		MaxConcurrent:         64,
		StateRoot:             filepath.Join(home, ".hanzo"),
		LogLevel:              "info",
	}
}

// Load builds a Config by applying, in order: defaults, an optional YAML
// file at path (skipped if empty or missing), a .env file if present in
// the working directory, then MCPCORE_* environment variables. CLI flags
// are applied afterward by the caller (cmd/mcpcore), since only Cobra
// knows which flags the user actually set versus left at their zero
// value.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if yerr := yaml.Unmarshal(data, &cfg); yerr != nil {
				return Config{}, coreerrors.Wrap(coreerrors.InvalidArguments, yerr, "failed to parse config file", yamlPath)
			}
		case os.IsNotExist(err):
			// A missing config file is not an error: defaults stand.
		default:
			return Config{}, coreerrors.Wrap(coreerrors.Internal, err, "failed to read config file", yamlPath)
		}
	}

	_ = godotenv.Load() // best-effort; absence of .env is normal.

	if err := LoadFromEnv(&cfg); err != nil {
		return Config{}, coreerrors.Wrap(coreerrors.InvalidArguments, err, "failed to load environment configuration", "")
	}

	return cfg, nil
}

// Validate reports a configuration error (exit code 2 per §6) for any
// value that cannot possibly produce a working server.
func (c Config) Validate() error {
	if c.Transport != "stdio" && c.Transport != "sse" {
		return coreerrors.New(coreerrors.InvalidArguments, "transport must be stdio or sse", c.Transport)
	}
	if c.ResponseTokenCap <= 0 {
		return coreerrors.New(coreerrors.InvalidArguments, "response_token_cap must be positive", "")
	}
	if c.MaxConcurrent <= 0 {
		return coreerrors.New(coreerrors.InvalidArguments, "max_concurrent must be positive", "")
	}
	if c.Transport == "sse" && c.Port <= 0 {
		return coreerrors.New(coreerrors.InvalidArguments, "port must be positive for sse transport", "")
	}
	return nil
}

// AutoBackgroundDuration converts the configured seconds into a
// time.Duration; 0 means auto-background is disabled (the Permission/
// Process layer treats a non-positive ForegroundDeadline as "wait
// forever, the dispatcher's invocation deadline governs instead").
func (c Config) AutoBackgroundDuration() time.Duration {
	if c.AutoBackgroundSeconds <= 0 {
		return 0
	}
	return time.Duration(c.AutoBackgroundSeconds) * time.Second
}
