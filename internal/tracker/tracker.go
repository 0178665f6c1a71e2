// Package tracker maintains per-record sync bookkeeping.
//
// Every tracked record has at most one sync_metadata row keyed by
// (table_name, record_id). Absence of a row means the record was never
// touched by sync. A pending row without a remote_id means the record
// exists locally only and needs remote creation; once a remote_id is
// stored, later edits re-mark the row pending with the remote_id kept,
// signalling "needs remote update".
//
// Bookkeeping must never block a business mutation: MarkPending swallows
// failures and logs them, degrading to "no sync tracking" until the
// metadata table recovers.
package tracker

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tidemark-app/tidemark/internal/localdb"
)

// Sync status values for a metadata row.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
	StatusError   = "error"
)

// Meta is one sync_metadata row.
type Meta struct {
	TableName    string
	RecordID     int64
	SyncStatus   string
	RemoteID     *int64
	LastModified time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Tracker reads and writes sync bookkeeping in the local store.
type Tracker struct {
	db     *localdb.DB
	logger *log.Logger
	now    func() time.Time
}

// New creates a Tracker over the local database.
// If logger is nil, a default logger writing to stderr is used.
func New(db *localdb.DB, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.New(os.Stderr, "[tracker] ", log.LstdFlags)
	}
	return &Tracker{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (t *Tracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// MarkPending upserts the metadata row for (table, recordID) with status
// pending. A non-nil remoteID is stored; if nil, any previously stored
// remote_id is preserved so a re-edited record still routes to a remote
// update rather than a duplicate insert.
//
// Failures are swallowed and logged: sync tracking degrades rather than
// failing the business mutation that triggered it.
func (t *Tracker) MarkPending(ctx context.Context, table string, recordID int64, remoteID *int64) {
	now := t.now().UTC().Format(time.RFC3339)

	query := `
	INSERT INTO sync_metadata (
		table_name, record_id, sync_status, remote_id,
		last_modified, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(table_name, record_id) DO UPDATE SET
		sync_status = excluded.sync_status,
		remote_id = COALESCE(excluded.remote_id, sync_metadata.remote_id),
		last_modified = excluded.last_modified,
		updated_at = excluded.updated_at
	`

	err := t.db.Exec(ctx, query,
		table, recordID, StatusPending, remoteIDValue(remoteID), now, now, now)
	if err != nil {
		t.logger.Printf("WARNING: failed to mark %s id=%d pending (sync tracking degraded): %v",
			table, recordID, err)
	}
}

// ListPending returns metadata rows with status pending or error, oldest
// first, capped at limit. Oldest-first ordering keeps retries fair and
// bounds how stale a record can get.
func (t *Tracker) ListPending(ctx context.Context, limit int) ([]Meta, error) {
	query := `
	SELECT table_name, record_id, sync_status, remote_id,
	       last_modified, created_at, updated_at
	FROM sync_metadata
	WHERE sync_status IN (?, ?)
	ORDER BY last_modified ASC
	LIMIT ?
	`

	rows, err := t.db.Query(ctx, query, StatusPending, StatusError, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending metadata: %w", err)
	}

	out := make([]Meta, 0, len(rows))
	for _, row := range rows {
		out = append(out, metaFromRow(row))
	}
	return out, nil
}

// UpdateStatus transitions the metadata row for (table, recordID),
// creating it if the record was never tracked - the download phase marks
// freshly pulled records synced this way. On transition to synced a
// non-nil remoteID is persisted as the durable cross-store link; a nil
// remoteID leaves any stored link untouched.
func (t *Tracker) UpdateStatus(ctx context.Context, table string, recordID int64, status string, remoteID *int64) error {
	now := t.now().UTC().Format(time.RFC3339)

	query := `
	INSERT INTO sync_metadata (
		table_name, record_id, sync_status, remote_id,
		last_modified, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(table_name, record_id) DO UPDATE SET
		sync_status = excluded.sync_status,
		remote_id = COALESCE(excluded.remote_id, sync_metadata.remote_id),
		updated_at = excluded.updated_at
	`

	err := t.db.Exec(ctx, query,
		table, recordID, status, remoteIDValue(remoteID), now, now, now)
	if err != nil {
		return fmt.Errorf("failed to update sync status for %s id=%d: %w", table, recordID, err)
	}
	return nil
}

// ColumnsOf returns the set of columns that exist locally for the table.
// The download phase filters remote rows through this set so remote-only
// audit columns never reach a local INSERT or UPDATE.
func (t *Tracker) ColumnsOf(ctx context.Context, table string) (map[string]bool, error) {
	cols, err := t.db.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	return set, nil
}

// Reset clears all sync metadata and the sync history log. This is the
// only path that deletes metadata rows; after a reset every record looks
// untouched by sync.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.db.Exec(ctx, `DELETE FROM sync_metadata`); err != nil {
		return fmt.Errorf("failed to clear sync metadata: %w", err)
	}
	if err := t.db.Exec(ctx, `DELETE FROM sync_log`); err != nil {
		return fmt.Errorf("failed to clear sync log: %w", err)
	}
	return nil
}

// remoteIDValue converts an optional remote id to a SQL argument.
func remoteIDValue(remoteID *int64) any {
	if remoteID == nil {
		return nil
	}
	return *remoteID
}

// metaFromRow builds a Meta from a generic localdb row.
func metaFromRow(row localdb.Row) Meta {
	m := Meta{
		TableName:  str(row["table_name"]),
		SyncStatus: str(row["sync_status"]),
	}
	if id, ok := row["record_id"].(int64); ok {
		m.RecordID = id
	}
	if rid, ok := row["remote_id"].(int64); ok {
		m.RemoteID = &rid
	}
	m.LastModified = parseTime(row["last_modified"])
	m.CreatedAt = parseTime(row["created_at"])
	m.UpdatedAt = parseTime(row["updated_at"])
	return m
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
