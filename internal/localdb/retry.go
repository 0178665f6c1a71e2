package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// withRetry runs op against the current connection, retrying a bounded
// number of times with a linearly increasing delay. Between attempts the
// underlying connection is discarded and reopened, which recovers from
// transient handle invalidation (e.g. the file being swapped out from
// under the process). Persistent errors - schema mismatches, constraint
// violations - exhaust the attempts and surface to the caller.
func (db *DB) withRetry(ctx context.Context, what string, op func(conn *sql.DB) error) error {
	var lastErr error

	for attempt := 1; attempt <= db.maxAttempts; attempt++ {
		conn, err := db.current()
		if err != nil {
			lastErr = err
		} else if err := op(conn); err != nil {
			// Missing rows are a definitive answer, not a transient fault.
			if errors.Is(err, ErrNotFound) {
				return err
			}
			lastErr = err
		} else {
			return nil
		}

		if attempt == db.maxAttempts {
			break
		}

		db.logger.Printf("%s failed (attempt %d/%d), reopening connection: %v",
			what, attempt, db.maxAttempts, lastErr)
		db.reopen()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * db.retryDelay):
		}
	}

	return lastErr
}

// current returns the active connection, reopening it if it was discarded.
func (db *DB) current() (*sql.DB, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		return db.conn, nil
	}

	conn, err := openConn(db.path)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen database: %w", err)
	}
	db.conn = conn
	return conn, nil
}

// reopen discards the current connection so the next attempt gets a fresh one.
func (db *DB) reopen() {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		_ = db.conn.Close()
		db.conn = nil
	}
}
