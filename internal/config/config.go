// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// traceagent client.
//
// Configuration sources, in order of precedence:
//   - TRACEAGENT_* environment variables (optionally from a .env file)
//   - ~/.traceagent/config.toml
//   - Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/traceagent/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete traceagent client configuration.
type Config struct {
	Version string `toml:"version"`

	Backend BackendConfig `toml:"backend"`
	Session SessionConfig `toml:"session"`
	History HistoryConfig `toml:"history"`
	Logging LoggingConfig `toml:"logging"`
}

// BackendConfig locates the dashboard backend.
type BackendConfig struct {
	// URL is the backend base URL.
	URL string `toml:"url"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `toml:"max_retries"`
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	// File is the session file path (empty = default ~/.traceagent/session.json).
	File string `toml:"file"`
	// Encrypt stores the session via the encrypted store instead of
	// the plain file store.
	Encrypt bool `toml:"encrypt"`
	// IdleTimeoutSecs logs the session out after this much inactivity.
	// 0 disables the idle timeout. Non-zero values are clamped to
	// [60, 86400].
	IdleTimeoutSecs int `toml:"idle_timeout_secs"`
}

// HistoryConfig controls the local chat archive.
type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
	// File is the archive path (empty = default ~/.traceagent/history.db).
	File string `toml:"file"`
	// MaxConversations bounds the archive; older conversations are
	// pruned. 0 = unlimited.
	MaxConversations int `toml:"max_conversations"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Level is one of: trace, debug, info, warn, error, disabled.
	Level string `toml:"level"`
	// File is the log destination (empty = stderr).
	File string `toml:"file"`
}

// =============================================================================
// DEFAULTS AND PATHS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			URL:         "http://localhost:5000",
			TimeoutSecs: 30,
			MaxRetries:  3,
		},
		Session: SessionConfig{
			IdleTimeoutSecs: 0,
		},
		History: HistoryConfig{
			Enabled:          true,
			MaxConversations: 200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns the traceagent configuration directory.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".traceagent"), nil
}

// ConfigPath returns the TOML config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load builds the effective configuration: defaults, then the config file
// if present, then environment overrides, then validation. A missing
// config file is not an error.
func Load() (*Config, error) {
	// Best effort; a .env file is optional.
	_ = godotenv.Load()

	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML merges a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// LoadFromPath loads a config from an explicit path, applying env
// overrides and validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies TRACEAGENT_* environment variables on top of
// the loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TRACEAGENT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("TRACEAGENT_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSecs = n
		}
	}
	if v := os.Getenv("TRACEAGENT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backend.MaxRetries = n
		}
	}
	if v := os.Getenv("TRACEAGENT_SESSION_FILE"); v != "" {
		c.Session.File = v
	}
	if v := os.Getenv("TRACEAGENT_SESSION_ENCRYPT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Session.Encrypt = b
		}
	}
	if v := os.Getenv("TRACEAGENT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TRACEAGENT_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("TRACEAGENT_HISTORY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.History.Enabled = b
		}
	}
}

// SetDefaults fills empty fields and clamps out-of-range values.
func (c *Config) SetDefaults() {
	def := Default()

	if c.Version == "" {
		c.Version = def.Version
	}
	if c.Backend.URL == "" {
		c.Backend.URL = def.Backend.URL
	}
	if c.Backend.TimeoutSecs <= 0 {
		c.Backend.TimeoutSecs = def.Backend.TimeoutSecs
	}
	if c.Backend.MaxRetries < 0 {
		c.Backend.MaxRetries = def.Backend.MaxRetries
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.History.MaxConversations < 0 {
		c.History.MaxConversations = def.History.MaxConversations
	}

	// Clamp a configured idle timeout to a sane band.
	if c.Session.IdleTimeoutSecs != 0 {
		if c.Session.IdleTimeoutSecs < 60 {
			c.Session.IdleTimeoutSecs = 60
		}
		if c.Session.IdleTimeoutSecs > 86400 {
			c.Session.IdleTimeoutSecs = 86400
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors aggregates validation failures.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "config validation failed: " + strings.Join(msgs, "; ")
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "disabled": true,
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL %q", c.Backend.URL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("unsupported scheme %q", u.Scheme),
		})
	}

	if c.Backend.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: "timeout above 600s is not usable interactively",
		})
	}
	if c.Backend.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "backend.max_retries",
			Message: "retry budget above 10 is not allowed",
		})
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level %q", c.Logging.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVING AND ACCESSORS
// =============================================================================

// Save writes the configuration to the default path atomically with 0600
// permissions.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to an explicit path.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# traceagent configuration\n\n")
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(sb.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Timeout returns the backend timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// IdleTimeout returns the session idle timeout as a duration, 0 when
// disabled.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutSecs) * time.Second
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	dup := *c
	return &dup
}
