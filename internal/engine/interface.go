// Package engine implements the bidirectional sync orchestrator.
//
// A sync pass is one run of: connectivity check, upload phase, download
// phase, history log append, terminal status broadcast. Passes are
// serialized by a simple in-process boolean lock - callers that race to
// start a pass either win or get a rejection, never both.
//
// The engine is resilient at record granularity: one record's failure
// never aborts the batch. Per-record failures leave that record's
// metadata in error status so the next pass retries it.
package engine

import (
	"context"

	"github.com/tidemark-app/tidemark/internal/tracker"
)

// LocalStore is the subset of the local database the engine drives.
//
// QueryOne returns localdb.ErrNotFound for missing records; the upload
// phase relies on that to detect local deletions (tombstones).
type LocalStore interface {
	// QueryAll returns every row in the table.
	QueryAll(ctx context.Context, table string) ([]map[string]any, error)

	// QueryOne returns the row with the given id, or localdb.ErrNotFound.
	QueryOne(ctx context.Context, table string, id int64) (map[string]any, error)

	// Insert adds a row, preserving a provided "id" field so downloaded
	// records keep their remote identity.
	Insert(ctx context.Context, table string, fields map[string]any) (int64, error)

	// Update overwrites the given columns of the row with the given id.
	Update(ctx context.Context, table string, id int64, fields map[string]any) error
}

// RemoteStore is the subset of the remote client the engine drives.
//
// Every call may fail with a network error; the engine treats a failed
// Ping as fatal to the pass and any other failure as per-record.
type RemoteStore interface {
	// Ping issues a lightweight read to verify connectivity.
	Ping(ctx context.Context) error

	// Select returns every row in the remote table.
	Select(ctx context.Context, table string) ([]map[string]any, error)

	// Insert adds a row remotely and returns the stored row including
	// the remote-assigned id.
	Insert(ctx context.Context, table string, fields map[string]any) (map[string]any, error)

	// Update overwrites the remote row and returns the stored row.
	Update(ctx context.Context, table string, id int64, fields map[string]any) (map[string]any, error)

	// Delete removes the remote row. Idempotent: deleting a missing row
	// is not an error.
	Delete(ctx context.Context, table string, id int64) error
}

// Bookkeeper is the sync metadata surface the engine reads and writes.
// *tracker.Tracker is the production implementation.
type Bookkeeper interface {
	// ListPending returns pending-or-error metadata rows, oldest first.
	ListPending(ctx context.Context, limit int) ([]tracker.Meta, error)

	// UpdateStatus transitions a metadata row, persisting remoteID on
	// transition to synced.
	UpdateStatus(ctx context.Context, table string, recordID int64, status string, remoteID *int64) error

	// ColumnsOf returns the set of locally writable columns for the table.
	ColumnsOf(ctx context.Context, table string) (map[string]bool, error)

	// AppendLog records one sync pass in the history log.
	AppendLog(ctx context.Context, entry tracker.LogEntry) error

	// History returns recent sync passes, newest first.
	History(ctx context.Context, limit int) ([]tracker.LogEntry, error)
}
