// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Storage.Backend != BackendFile {
		t.Errorf("default backend = %q, want %q", cfg.Storage.Backend, BackendFile)
	}
	if cfg.Session.CheckIntervalSecs != 300 {
		t.Errorf("default check interval = %d, want 300", cfg.Session.CheckIntervalSecs)
	}
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
backend = "sqlite"
db_path = "/tmp/authsync-test.db"
poll_interval_secs = 5

[session]
check_interval_secs = 60
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.DBPath != "/tmp/authsync-test.db" {
		t.Errorf("db_path = %q", cfg.Storage.DBPath)
	}
	if cfg.CheckInterval() != time.Minute {
		t.Errorf("CheckInterval = %v, want 1m", cfg.CheckInterval())
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %v, want 5s", cfg.PollInterval())
	}
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[storage]\nbackend = \"file\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Session.CheckIntervalSecs != 300 {
		t.Errorf("check interval = %d, want default 300", cfg.Session.CheckIntervalSecs)
	}
	if cfg.Storage.Dir == "" {
		t.Error("storage dir should be derived from home directory")
	}
}

func TestLoadFrom_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[storage]\nbackend = \"redis\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("unknown backend should be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTHSYNC_BACKEND", "sqlite")
	t.Setenv("AUTHSYNC_CHECK_INTERVAL", "30")

	cfg := Default()
	applyEnvOverrides(&cfg)

	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("backend = %q, want env override", cfg.Storage.Backend)
	}
	if cfg.Session.CheckIntervalSecs != 30 {
		t.Errorf("check interval = %d, want 30", cfg.Session.CheckIntervalSecs)
	}
}

func TestNormalize_ClampsIntervals(t *testing.T) {
	cfg := Default()
	cfg.Session.CheckIntervalSecs = 0
	cfg.Storage.PollIntervalSecs = -3

	cfg.normalize("/home/test")

	if cfg.Session.CheckIntervalSecs != 1 {
		t.Errorf("check interval = %d, want clamped to 1", cfg.Session.CheckIntervalSecs)
	}
	if cfg.Storage.PollIntervalSecs != 1 {
		t.Errorf("poll interval = %d, want clamped to 1", cfg.Storage.PollIntervalSecs)
	}
}
