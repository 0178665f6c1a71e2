package daemon

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/tidemark-app/tidemark/internal/engine"
)

func quietConfig() *Config {
	cfg := DefaultConfig()
	cfg.SyncInterval = 50 * time.Millisecond
	cfg.DebounceInterval = 10 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

// unconfiguredEngine has no remote store, so every pass fails fast
// without touching any dependency. Enough for daemon lifecycle tests.
func unconfiguredEngine() *engine.Engine {
	return engine.New(nil, nil, nil, nil, &engine.Config{
		Logger: log.New(io.Discard, "", 0),
	})
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(nil, "/tmp/test.db", quietConfig()); err == nil {
		t.Error("New() accepted a nil engine")
	}
}

func TestNewRequiresDBPath(t *testing.T) {
	if _, err := New(unconfiguredEngine(), "", quietConfig()); err == nil {
		t.Error("New() accepted an empty database path")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	d, err := New(unconfiguredEngine(), filepath.Join(dir, "test.db"), quietConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after context cancellation")
	}
}

func TestMarkDirtyDebounce(t *testing.T) {
	dir := t.TempDir()
	d, err := New(unconfiguredEngine(), filepath.Join(dir, "test.db"), quietConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer d.watcher.Close()

	d.markDirty()

	d.changeMu.Lock()
	dirty := d.dirty
	changed := d.lastChange
	d.changeMu.Unlock()

	if !dirty {
		t.Error("markDirty() did not set the dirty flag")
	}
	if changed.IsZero() {
		t.Error("markDirty() did not record the change time")
	}
}
