// Package localdb provides the embedded SQLite store for tidemark.
//
// This is the local side of the sync pair: all application mutations land
// here first, and the sync engine reconciles this database with the remote
// libSQL store. The database runs in embedded mode with WAL so concurrent
// readers don't block the sync pass.
//
// Layout:
//   - Business tables: projects, tags, tasks, task_tags
//   - Sync control tables: sync_metadata, sync_log
//
// All row access goes through the generic CRUD primitives in crud.go, which
// operate on Row maps keyed by column name. Fallible operations are wrapped
// in a bounded retry that reopens the connection between attempts (retry.go).
package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when an operation references a record that does
// not exist. Callers can check it with errors.Is().
var ErrNotFound = errors.New("record not found")

// DB wraps the embedded SQLite connection with tidemark-specific helpers.
type DB struct {
	mu     sync.Mutex
	conn   *sql.DB
	path   string
	logger *log.Logger

	maxAttempts int
	retryDelay  time.Duration
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema afterwards
// to create the tables.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}

	return &DB{
		conn:        conn,
		path:        path,
		logger:      log.New(os.Stderr, "[localdb] ", log.LstdFlags),
		maxAttempts: 3,
		retryDelay:  100 * time.Millisecond,
	}, nil
}

// openConn opens and configures a raw connection to the database file.
func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return conn, nil
}

// SetLogger replaces the default stderr logger.
func (db *DB) SetLogger(logger *log.Logger) {
	if logger != nil {
		db.logger = logger
	}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		db.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// This creates the four business tables, the two sync control tables, and
// the indexes used by the pending-work query. Idempotent - safe to call
// multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- Business tables
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		color TEXT,
		created_at TEXT NOT NULL
	);

	-- The cascade is a backstop for integrity only: the records service
	-- deletes a project's tasks one by one before the project row, so
	-- every removal is visible to sync tracking.
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY,
		project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'open',
		due_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Junction rows are cleaned up by the records service, not by a
	-- foreign key, so orphan detection stays visible to sync tracking.
	CREATE TABLE IF NOT EXISTS task_tags (
		id INTEGER PRIMARY KEY,
		task_id INTEGER NOT NULL,
		tag_id INTEGER NOT NULL,
		UNIQUE (task_id, tag_id)
	);

	-- Sync control tables
	CREATE TABLE IF NOT EXISTS sync_metadata (
		id INTEGER PRIMARY KEY,
		table_name TEXT NOT NULL,
		record_id INTEGER NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		remote_id INTEGER,
		last_modified TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (table_name, record_id)
	);

	CREATE TABLE IF NOT EXISTS sync_log (
		id INTEGER PRIMARY KEY,
		sync_type TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		records_synced INTEGER NOT NULL DEFAULT 0,
		error_detail TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_task_tags_task ON task_tags(task_id);
	CREATE INDEX IF NOT EXISTS idx_task_tags_tag ON task_tags(tag_id);

	-- Composite index for the pending-work query (status + oldest first)
	CREATE INDEX IF NOT EXISTS idx_sync_metadata_pending
	    ON sync_metadata(sync_status, last_modified);
	`

	return db.withRetry(ctx, "init schema", func(conn *sql.DB) error {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		return nil
	})
}
