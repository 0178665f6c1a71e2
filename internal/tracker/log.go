package tracker

import (
	"context"
	"fmt"
	"time"
)

// Sync pass types recorded in the log.
const (
	LogTypeIncremental = "incremental"
	LogTypeExport      = "export"
)

// Log entry status values.
const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
)

// LogEntry is one append-only sync_log row: the audit record of a single
// sync pass. Entries are never mutated after insertion.
type LogEntry struct {
	ID            int64
	SyncType      string
	Status        string
	Message       string
	RecordsSynced int
	ErrorDetail   string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// AppendLog records one sync pass in the history log.
func (t *Tracker) AppendLog(ctx context.Context, entry LogEntry) error {
	query := `
	INSERT INTO sync_log (
		sync_type, status, message, records_synced, error_detail,
		started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := t.db.Exec(ctx, query,
		entry.SyncType,
		entry.Status,
		entry.Message,
		entry.RecordsSynced,
		entry.ErrorDetail,
		entry.StartedAt.UTC().Format(time.RFC3339),
		entry.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append sync log entry: %w", err)
	}
	return nil
}

// History returns the most recent sync passes, newest first, capped at limit.
func (t *Tracker) History(ctx context.Context, limit int) ([]LogEntry, error) {
	query := `
	SELECT id, sync_type, status, message, records_synced, error_detail,
	       started_at, finished_at
	FROM sync_log
	ORDER BY id DESC
	LIMIT ?
	`

	rows, err := t.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync history: %w", err)
	}

	out := make([]LogEntry, 0, len(rows))
	for _, row := range rows {
		entry := LogEntry{
			SyncType:    str(row["sync_type"]),
			Status:      str(row["status"]),
			Message:     str(row["message"]),
			ErrorDetail: str(row["error_detail"]),
			StartedAt:   parseTime(row["started_at"]),
			FinishedAt:  parseTime(row["finished_at"]),
		}
		if id, ok := row["id"].(int64); ok {
			entry.ID = id
		}
		if n, ok := row["records_synced"].(int64); ok {
			entry.RecordsSynced = int(n)
		}
		out = append(out, entry)
	}
	return out, nil
}
