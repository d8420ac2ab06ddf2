// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for authsync.
//
// Configuration is TOML with sensible defaults and environment variable
// overrides. Default location: ~/.authsync/config.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backend names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete authsync configuration.
type Config struct {
	Storage StorageConfig `toml:"storage"`
	Session SessionConfig `toml:"session"`
}

// StorageConfig selects and parameterizes the shared storage scope.
type StorageConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `toml:"backend"`

	// Dir is the directory backing the file store
	// (default: ~/.authsync/session).
	Dir string `toml:"dir"`

	// DBPath is the database file backing the sqlite store
	// (default: ~/.authsync/session.db).
	DBPath string `toml:"db_path"`

	// PollIntervalSecs is how often the sqlite backend is polled for
	// foreign mutations (default: 2).
	PollIntervalSecs int `toml:"poll_interval_secs"`
}

// SessionConfig tunes the session lifecycle.
type SessionConfig struct {
	// CheckIntervalSecs is the periodic token expiry check interval in
	// seconds (default: 300). Values below 1 are clamped.
	CheckIntervalSecs int `toml:"check_interval_secs"`
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend:          BackendFile,
			Dir:              "",
			DBPath:           "",
			PollIntervalSecs: 2,
		},
		Session: SessionConfig{
			CheckIntervalSecs: 300,
		},
	}
}

// Load reads ~/.authsync/config.toml, falling back to defaults when the
// file does not exist. Environment overrides apply either way.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), fmt.Errorf("failed to locate home directory: %w", err)
	}
	path := filepath.Join(home, ".authsync", "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		applyEnvOverrides(&cfg)
		cfg.normalize(home)
		return cfg, nil
	}

	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfg.normalize(home)

	if err := cfg.validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AUTHSYNC_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("AUTHSYNC_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("AUTHSYNC_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("AUTHSYNC_CHECK_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Session.CheckIntervalSecs = secs
		}
	}
}

// normalize fills derived defaults and clamps intervals.
func (c *Config) normalize(home string) {
	if c.Storage.Dir == "" {
		c.Storage.Dir = filepath.Join(home, ".authsync", "session")
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(home, ".authsync", "session.db")
	}
	if c.Storage.PollIntervalSecs < 1 {
		c.Storage.PollIntervalSecs = 1
	}
	if c.Session.CheckIntervalSecs < 1 {
		c.Session.CheckIntervalSecs = 1
	}
}

// validate rejects values normalize cannot repair.
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}

// CheckInterval returns the expiry check interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Session.CheckIntervalSecs) * time.Second
}

// PollInterval returns the sqlite poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Storage.PollIntervalSecs) * time.Second
}
