package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	wantDB := filepath.Join(home, ".tidemark", "tidemark.db")
	if cfg.DatabasePath != wantDB {
		t.Errorf("DatabasePath = %q, want %q", cfg.DatabasePath, wantDB)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg.BatchSize)
	}
	if cfg.SyncInterval != 5*time.Minute {
		t.Errorf("SyncInterval = %v, want 5m", cfg.SyncInterval)
	}
	if cfg.DashboardPort != 8422 {
		t.Errorf("DashboardPort = %d, want 8422", cfg.DashboardPort)
	}
	if cfg.Configured() {
		t.Error("Configured() = true with no remote URL")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := &Config{
		DatabasePath:    "/tmp/custom.db",
		RemoteURL:       "libsql://tidemark-test.turso.io",
		RemoteAuthToken: "secret-token",
		BatchSize:       25,
		SyncInterval:    90 * time.Second,
		DashboardPort:   9000,
	}
	if err := Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.RemoteURL != in.RemoteURL {
		t.Errorf("RemoteURL = %q, want %q", out.RemoteURL, in.RemoteURL)
	}
	if out.RemoteAuthToken != in.RemoteAuthToken {
		t.Errorf("RemoteAuthToken = %q, want %q", out.RemoteAuthToken, in.RemoteAuthToken)
	}
	if out.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", out.BatchSize)
	}
	if out.SyncInterval != 90*time.Second {
		t.Errorf("SyncInterval = %v, want 90s", out.SyncInterval)
	}
	if !out.Configured() {
		t.Error("Configured() = false after saving a remote URL")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TIDEMARK_REMOTE_URL", "libsql://from-env.turso.io")
	t.Setenv("TIDEMARK_BATCH_SIZE", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RemoteURL != "libsql://from-env.turso.io" {
		t.Errorf("RemoteURL = %q, want env value", cfg.RemoteURL)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize = %d, want 10", cfg.BatchSize)
	}
}

func TestEnvOnlyConfiguration(t *testing.T) {
	// The non-interactive path 'tm login' points at: no config file, the
	// defaultless keys set purely through the environment.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TIDEMARK_REMOTE_URL", "libsql://headless.turso.io")
	t.Setenv("TIDEMARK_REMOTE_AUTH_TOKEN", "env-token")
	t.Setenv("TIDEMARK_LOG_FILE", "/var/log/tidemark.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RemoteURL != "libsql://headless.turso.io" {
		t.Errorf("RemoteURL = %q, want env value", cfg.RemoteURL)
	}
	if cfg.RemoteAuthToken != "env-token" {
		t.Errorf("RemoteAuthToken = %q, want env value", cfg.RemoteAuthToken)
	}
	if cfg.LogFile != "/var/log/tidemark.log" {
		t.Errorf("LogFile = %q, want env value", cfg.LogFile)
	}
	if !cfg.Configured() {
		t.Error("Configured() = false with remote URL set via environment")
	}
}
