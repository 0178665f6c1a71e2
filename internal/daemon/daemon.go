// Package daemon runs sync passes in the background.
//
// Two triggers feed it: a periodic timer (drains a large pending backlog
// over successive passes, since one pass is bounded by the batch size)
// and a debounced filesystem watch on the local database directory, which
// approximates "sync soon after the app mutates data".
//
// The daemon defers rather than queues: a trigger that fires while a pass
// is in flight is dropped, the next timer tick picks the work up again.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tidemark-app/tidemark/internal/engine"
)

// Config holds configuration for the daemon.
type Config struct {
	// SyncInterval is how often a pass runs regardless of file activity
	// (default: 5 minutes).
	SyncInterval time.Duration

	// DebounceInterval is how long file activity must be quiet before a
	// change-triggered pass runs (default: 2 seconds).
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:     5 * time.Minute,
		DebounceInterval: 2 * time.Second,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon triggers sync passes on a timer and on local database activity.
type Daemon struct {
	engine    *engine.Engine
	watchDir  string
	config    *Config
	watcher   *fsnotify.Watcher

	changeMu   sync.Mutex
	dirty      bool
	lastChange time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Daemon that watches the directory containing dbPath.
func New(eng *engine.Engine, dbPath string, config *Config) (*Daemon, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{
		engine:   eng,
		watchDir: filepath.Dir(dbPath),
		config:   config,
		watcher:  watcher,
	}, nil
}

// Start begins watching and syncing. Blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting sync daemon")

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.watcher.Add(d.watchDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", d.watchDir, err)
	}
	d.config.Logger.Printf("Watching: %s", d.watchDir)

	// Initial pass so a fresh start reconciles immediately.
	d.trigger(ctx, "startup")

	d.wg.Add(2)
	go d.watchFileEvents(ctx)
	go d.syncLoop(ctx)

	<-ctx.Done()
	return d.Stop()
}

// Stop shuts the daemon down and waits for its goroutines.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping sync daemon")

	if d.cancel != nil {
		d.cancel()
	}
	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()

	d.config.Logger.Println("Sync daemon stopped")
	return nil
}

// watchFileEvents marks the daemon dirty on database file activity.
func (d *Daemon) watchFileEvents(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Only the database and its WAL matter, not stray files.
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".db") && !strings.HasSuffix(name, ".db-wal") {
				continue
			}
			d.markDirty()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

func (d *Daemon) markDirty() {
	d.changeMu.Lock()
	d.dirty = true
	d.lastChange = time.Now()
	d.changeMu.Unlock()
}

// syncLoop runs the periodic and debounced change-triggered passes.
func (d *Daemon) syncLoop(ctx context.Context) {
	defer d.wg.Done()

	interval := time.NewTicker(d.config.SyncInterval)
	defer interval.Stop()

	debounce := time.NewTicker(d.config.DebounceInterval)
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-interval.C:
			d.trigger(ctx, "interval")

		case <-debounce.C:
			d.changeMu.Lock()
			due := d.dirty && time.Since(d.lastChange) >= d.config.DebounceInterval
			if due {
				d.dirty = false
			}
			d.changeMu.Unlock()

			if due {
				d.trigger(ctx, "change")
			}
		}
	}
}

// trigger runs one sync pass unless another is already in flight.
func (d *Daemon) trigger(ctx context.Context, reason string) {
	if d.engine.Status().InProgress {
		d.config.Logger.Printf("Skipping %s sync: pass already in flight", reason)
		return
	}

	res := d.engine.Sync(ctx, false)

	// The pass itself writes sync metadata, which the watcher sees.
	// Clear the dirty flag so a pass doesn't re-trigger itself; real
	// mutations during the pass are caught by the next interval tick.
	d.changeMu.Lock()
	d.dirty = false
	d.changeMu.Unlock()

	if !res.Success {
		d.config.Logger.Printf("%s sync failed: %s", reason, res.Message)
		return
	}
	d.config.Logger.Printf("%s sync: %s", reason, res.Message)
}
