// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"homefs/internal/fsops"
	"homefs/internal/paths"
	"homefs/internal/tools"
)

// Defaults for optional settings.
const (
	DefaultListen                      = "127.0.0.1:8765"
	DefaultEndpoint                    = "/rpc"
	DefaultMaxRequestBytes       int64 = 8 * 1024 * 1024
	DefaultRequestTimeoutSeconds       = 60
	DefaultRateLimitPerMinute          = 120
	DefaultRateLimitBurst              = 30
	DefaultLogLevel                    = "info"

	minTokenLength = 16
)

// Config represents the server configuration.
type Config struct {
	Listen                string    `json:"listen,omitempty"`
	Endpoint              string    `json:"endpoint,omitempty"`
	Token                 string    `json:"token"`
	HomeDir               string    `json:"home_dir,omitempty"`
	BaseDir               string    `json:"base_dir,omitempty"`
	AppsDir               string    `json:"apps_dir,omitempty"`
	LogsDir               string    `json:"logs_dir,omitempty"`
	ProtectedPaths        []string  `json:"protected_paths,omitempty"`
	MaxRequestBytes       int64     `json:"max_request_bytes,omitempty"`
	RequestTimeoutSeconds int       `json:"request_timeout_seconds,omitempty"`
	RateLimit             RateLimit `json:"rate_limit,omitempty"`
	LogLevel              string    `json:"log_level,omitempty"`
}

// RateLimit configures the per-client token bucket.
type RateLimit struct {
	PerMinute int `json:"per_minute,omitempty"`
	Burst     int `json:"burst,omitempty"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Listen:                DefaultListen,
		Endpoint:              DefaultEndpoint,
		MaxRequestBytes:       DefaultMaxRequestBytes,
		RequestTimeoutSeconds: DefaultRequestTimeoutSeconds,
		RateLimit: RateLimit{
			PerMinute: DefaultRateLimitPerMinute,
			Burst:     DefaultRateLimitBurst,
		},
		LogLevel: DefaultLogLevel,
	}
}

// DefaultConfigPath returns $HOME/.config/homefs/config.json.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "homefs", "config.json"), nil
}

// LoadConfig loads configuration from a JSON (comments allowed) file,
// applies env overrides and validates required fields. A missing file is
// not an error as long as the environment supplies the token.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		normalized, err := normalizeConfigJSON(data)
		if err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Env overrides apply regardless of whether the config file exists.
	if val := os.Getenv("HOMEFS_TOKEN"); val != "" {
		config.Token = val
	}
	if val := os.Getenv("HOMEFS_HOME"); val != "" {
		config.HomeDir = val
	}
	if val := os.Getenv("HOMEFS_BASE_DIR"); val != "" {
		config.BaseDir = val
	}
	if val := os.Getenv("HOMEFS_LISTEN"); val != "" {
		config.Listen = val
	}

	config.applyDefaults()

	if strings.TrimSpace(config.Token) == "" {
		return nil, fmt.Errorf("token is required (set token in %s or HOMEFS_TOKEN)", path)
	}
	if config.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("home_dir is not set and the user home directory is unknown: %w", err)
		}
		config.HomeDir = home
	}
	if !filepath.IsAbs(config.HomeDir) {
		return nil, fmt.Errorf("home_dir must be absolute, got %q", config.HomeDir)
	}

	return config, nil
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.MaxRequestBytes == 0 {
		c.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if c.RateLimit.PerMinute == 0 {
		c.RateLimit.PerMinute = DefaultRateLimitPerMinute
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Runtime derives the immutable operation environment. The config file
// itself joins the protected set so the server can never rewrite its own
// token.
func (c *Config) Runtime(configPath string, logger zerolog.Logger) (*fsops.Env, error) {
	protected := append([]string{}, c.ProtectedPaths...)
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		protected = append(protected, abs)
	}

	env, err := fsops.NewEnv(c.HomeDir, c.BaseDir, protected...)
	if err != nil {
		return nil, err
	}
	if c.AppsDir != "" {
		env.AppsDir = paths.ResolveBase(c.AppsDir, env.Home())
	}
	if c.LogsDir != "" {
		env.LogsDir = paths.ResolveBase(c.LogsDir, env.Home())
	}
	env.Logger = logger
	return env, nil
}

// RequestTimeout returns the per-request time budget.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ToolTimeoutsConfig returns the deadline applied to each tool call.
func (c *Config) ToolTimeoutsConfig() tools.TimeoutConfig {
	return tools.TimeoutConfig{Default: c.RequestTimeout()}
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate() []ValidationWarning {
	var warnings []ValidationWarning

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		warnings = append(warnings, ValidationWarning{
			Field:   "listen",
			Message: fmt.Sprintf("listen address %q is not host:port: %v", c.Listen, err),
		})
	}

	if !strings.HasPrefix(c.Endpoint, "/") {
		warnings = append(warnings, ValidationWarning{
			Field:   "endpoint",
			Message: fmt.Sprintf("endpoint %q should start with /", c.Endpoint),
		})
	}

	if len(c.Token) < minTokenLength {
		warnings = append(warnings, ValidationWarning{
			Field:   "token",
			Message: fmt.Sprintf("token is shorter than %d characters", minTokenLength),
		})
	}

	if c.BaseDir != "" && c.HomeDir != "" && !baseInsideHome(c.BaseDir, c.HomeDir) {
		warnings = append(warnings, ValidationWarning{
			Field:   "base_dir",
			Message: fmt.Sprintf("base_dir %q is outside home_dir, using home_dir", c.BaseDir),
		})
	}

	if c.MaxRequestBytes < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_request_bytes",
			Message: fmt.Sprintf("max_request_bytes %d must be positive, using default", c.MaxRequestBytes),
		})
	}

	if c.RequestTimeoutSeconds < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "request_timeout_seconds",
			Message: fmt.Sprintf("request_timeout_seconds %d must be positive, using default", c.RequestTimeoutSeconds),
		})
	}

	if c.RateLimit.PerMinute < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "rate_limit.per_minute",
			Message: "negative per_minute disables rate limiting",
		})
	}
	if c.RateLimit.Burst < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "rate_limit.burst",
			Message: fmt.Sprintf("rate_limit.burst %d must be positive, using 1", c.RateLimit.Burst),
		})
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		warnings = append(warnings, ValidationWarning{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown log level %q", c.LogLevel),
		})
	}

	return warnings
}

// baseInsideHome mirrors the lexical expansion the sandbox applies to
// base_dir, without the silent snap back to home.
func baseInsideHome(baseDir, homeDir string) bool {
	home := paths.Canonicalize(homeDir)
	joined := strings.TrimSpace(baseDir)
	switch {
	case strings.HasPrefix(joined, "~"):
		joined = home + "/" + strings.TrimLeft(joined[1:], `/\`)
	case !filepath.IsAbs(joined):
		joined = filepath.Join(home, joined)
	}
	return paths.HasPathPrefix(paths.Canonicalize(joined), home)
}
