package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/tidemark-app/tidemark/internal/bus"
	"github.com/tidemark-app/tidemark/internal/tracker"
)

// Messages carried by Result when a pass cannot run or fails as a whole.
const (
	MsgAlreadyInProgress = "Sync already in progress"
	MsgNoConnection      = "no connection"
	MsgNotConfigured     = "remote store not configured"
)

// DefaultBatchSize caps how many pending records one upload phase attempts.
const DefaultBatchSize = 50

// Config holds engine tuning knobs.
type Config struct {
	// BatchSize caps the pending records processed per upload phase
	// (default: DefaultBatchSize).
	BatchSize int

	// Logger for engine activity (default: stderr logger).
	Logger *log.Logger

	// Clock is the time source, injectable for tests (default: time.Now).
	Clock func() time.Time
}

// Result is the outcome of one sync pass. Sync never returns a Go error:
// every failure path resolves into a Result with Success=false and a
// message, so callers need no error handling around the top-level call.
type Result struct {
	Success         bool          `json:"success"`
	UploadedCount   int           `json:"uploaded_count"`
	DownloadedCount int           `json:"downloaded_count"`
	ErrorCount      int           `json:"error_count"`
	Duration        time.Duration `json:"duration"`
	Message         string        `json:"message,omitempty"`
}

// StatusInfo is a snapshot of the engine's externally visible state.
type StatusInfo struct {
	Online       bool      `json:"online"`
	InProgress   bool      `json:"in_progress"`
	LastSyncTime time.Time `json:"last_sync_time"`
	Configured   bool      `json:"configured"`
}

// Engine drives sync passes between the local and remote stores.
//
// All state lives on the struct - there is no package-level singleton.
// Construct one per process with New and share it by pointer.
type Engine struct {
	local   LocalStore
	remote  RemoteStore
	tracker Bookkeeper
	bus     *bus.Bus

	logger    *log.Logger
	now       func() time.Time
	batchSize int

	mu         sync.Mutex
	inProgress bool
	online     bool
	lastSync   time.Time
}

// New creates an Engine with injected store dependencies.
//
// remote may be nil when the remote store is unconfigured; Sync then
// fails fast with MsgNotConfigured. If statusBus is nil a private bus is
// created so Publish calls are always safe.
func New(local LocalStore, remote RemoteStore, bk Bookkeeper, statusBus *bus.Bus, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if statusBus == nil {
		statusBus = bus.New(logger)
	}

	return &Engine{
		local:     local,
		remote:    remote,
		tracker:   bk,
		bus:       statusBus,
		logger:    logger,
		now:       now,
		batchSize: batchSize,
	}
}

// Bus returns the status broadcast bus observers subscribe to.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Subscribe registers a listener for sync status events.
func (e *Engine) Subscribe(fn bus.Listener) (unsubscribe func()) {
	return e.bus.Subscribe(fn)
}

// Sync runs one complete sync pass and reports the outcome.
//
// A pass may only start when no other pass is in flight. force bypasses
// the caller's own staleness checks but does NOT preempt a running pass:
// if one is in flight the new request is rejected with
// MsgAlreadyInProgress regardless of force.
//
// Connectivity failure is fatal to the pass and leaves pending records
// untouched for the next attempt. Per-record failures inside the phases
// are isolated and counted; they do not fail the pass.
func (e *Engine) Sync(ctx context.Context, force bool) Result {
	start := e.now()

	if e.remote == nil {
		return Result{Message: MsgNotConfigured}
	}

	e.mu.Lock()
	if e.inProgress {
		e.mu.Unlock()
		return Result{Message: MsgAlreadyInProgress}
	}
	e.inProgress = true
	e.mu.Unlock()

	// Release the lock on every path out of the pass.
	defer func() {
		e.mu.Lock()
		e.inProgress = false
		e.mu.Unlock()
	}()

	e.logger.Printf("Starting sync pass (force=%v, batch=%d)", force, e.batchSize)
	e.bus.Publish(bus.StatusStarted, nil)

	// Connectivity check: a lightweight remote read. Failure fails the
	// whole pass fast; retry is the scheduler's responsibility.
	if err := e.remote.Ping(ctx); err != nil {
		e.setOnline(false)
		e.logger.Printf("Connectivity check failed: %v", err)
		e.bus.Publish(bus.StatusOffline, nil)
		return e.finish(ctx, start, Result{Message: MsgNoConnection}, err.Error())
	}
	e.setOnline(true)

	e.bus.Publish(bus.StatusUploading, nil)
	uploaded, uploadErrs := e.uploadPending(ctx)

	e.bus.Publish(bus.StatusDownloading, nil)
	downloaded, downloadErrs := e.downloadTables(ctx)

	res := Result{
		Success:         true,
		UploadedCount:   uploaded,
		DownloadedCount: downloaded,
		ErrorCount:      uploadErrs + downloadErrs,
	}
	res.Message = fmt.Sprintf("Synced %d record(s) up, %d down", uploaded, downloaded)
	if res.ErrorCount > 0 {
		res.Message += fmt.Sprintf(" (%d record error(s))", res.ErrorCount)
	}

	e.mu.Lock()
	e.lastSync = e.now()
	e.mu.Unlock()

	return e.finish(ctx, start, res, "")
}

// finish computes the elapsed time, appends the history entry, and
// broadcasts the terminal status. Per-record errors do not make the pass
// an error; only a pass that never completed its phases does.
func (e *Engine) finish(ctx context.Context, start time.Time, res Result, errDetail string) Result {
	res.Duration = e.now().Sub(start)

	entry := tracker.LogEntry{
		SyncType:      tracker.LogTypeIncremental,
		Status:        tracker.LogStatusSuccess,
		Message:       res.Message,
		RecordsSynced: res.UploadedCount + res.DownloadedCount,
		ErrorDetail:   errDetail,
		StartedAt:     start,
		FinishedAt:    start.Add(res.Duration),
	}
	if !res.Success {
		entry.Status = tracker.LogStatusError
	}

	// History is bookkeeping: failure to record the pass degrades the
	// audit trail but never the pass outcome.
	if err := e.tracker.AppendLog(ctx, entry); err != nil {
		e.logger.Printf("WARNING: failed to append sync log: %v", err)
	}

	if res.Success {
		e.bus.Publish(bus.StatusSuccess, res)
	} else {
		e.bus.Publish(bus.StatusError, res)
	}

	e.logger.Printf("Sync pass finished: success=%v up=%d down=%d errs=%d in %v",
		res.Success, res.UploadedCount, res.DownloadedCount, res.ErrorCount,
		res.Duration.Round(time.Millisecond))
	return res
}

// CheckConnection pings the remote store and updates the online flag.
func (e *Engine) CheckConnection(ctx context.Context) bool {
	if e.remote == nil {
		e.setOnline(false)
		return false
	}
	online := e.remote.Ping(ctx) == nil
	e.setOnline(online)
	return online
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() StatusInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return StatusInfo{
		Online:       e.online,
		InProgress:   e.inProgress,
		LastSyncTime: e.lastSync,
		Configured:   e.remote != nil,
	}
}

// History returns the most recent sync passes, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]tracker.LogEntry, error) {
	return e.tracker.History(ctx, limit)
}

func (e *Engine) setOnline(online bool) {
	e.mu.Lock()
	e.online = online
	e.mu.Unlock()
}
