// Package remotedb provides the cloud-side store client for tidemark.
//
// The remote store is a Turso/libSQL database reached over the network via
// the libsql driver. The client exposes table-scoped primitives only - the
// sync engine decides what to push and pull; this package just executes it.
//
// Only the four tracked business tables are addressable. The sync control
// tables (sync_metadata, sync_log) live exclusively in the local store.
package remotedb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/tidemark-app/tidemark/internal/model"
)

// Config holds the remote connection settings.
type Config struct {
	// URL is the libsql database URL, e.g. libsql://tidemark-user.turso.io
	URL string

	// AuthToken authenticates against the remote database.
	AuthToken string
}

// Configured reports whether the config carries enough to connect.
func (c Config) Configured() bool {
	return c.URL != ""
}

// Client wraps the remote libSQL connection.
type Client struct {
	conn *sql.DB
	url  string
}

// Open connects to the remote database described by cfg.
//
// Opening is lazy in database/sql; the first real network round-trip
// happens on Ping or the first query. The caller MUST call Close().
func Open(cfg Config) (*Client, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("remote database URL is not configured")
	}

	dsn := cfg.URL
	if cfg.AuthToken != "" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "authToken=" + url.QueryEscape(cfg.AuthToken)
	}

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetConnMaxIdleTime(time.Minute)

	return &Client{conn: conn, url: cfg.URL}, nil
}

// Close releases the remote connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close remote database: %w", err)
	}
	c.conn = nil
	return nil
}

// Ping issues a lightweight read against the remote store. Used as the
// connectivity check at the start of every sync pass.
func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("remote ping failed: %w", err)
	}
	return nil
}

// validTable guards against table name injection on the remote side.
func validTable(table string) error {
	if model.IsTracked(table) {
		return nil
	}
	return fmt.Errorf("unknown remote table %q", table)
}

// Select returns every row in the remote table, ordered by id.
func (c *Client) Select(ctx context.Context, table string) ([]map[string]any, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	rows, err := c.conn.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to select from remote %s: %w", table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Insert adds a row to the remote table and returns the stored row,
// including the remote-assigned id.
func (c *Client) Insert(ctx context.Context, table string, fields map[string]any) (map[string]any, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("remote insert into %s: no fields", table)
	}

	cols := sortedColumns(fields)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = fields[col]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		table, strings.Join(cols, ", "), placeholders)

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert into remote %s: %w", table, err)
	}
	defer rows.Close()

	return scanOne(rows, table)
}

// Update overwrites the given columns of the remote row and returns the
// stored row. Returns an error if the row does not exist.
func (c *Client) Update(ctx context.Context, table string, id int64, fields map[string]any) (map[string]any, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("remote update %s: no fields", table)
	}

	cols := sortedColumns(fields)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, fields[col])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ? RETURNING *`,
		table, strings.Join(sets, ", "))

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update remote %s id=%d: %w", table, id, err)
	}
	defer rows.Close()

	return scanOne(rows, table)
}

// Delete removes the remote row with the given id.
// Deleting a row that doesn't exist is not an error (idempotent) - the
// tombstone path in the sync engine relies on this.
func (c *Client) Delete(ctx context.Context, table string, id int64) error {
	if err := validTable(table); err != nil {
		return err
	}

	if _, err := c.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id); err != nil {
		return fmt.Errorf("failed to delete remote %s id=%d: %w", table, id, err)
	}
	return nil
}

// DeleteAll clears the remote table. Used by the exporter's
// clear-and-replace mode.
func (c *Client) DeleteAll(ctx context.Context, table string) error {
	if err := validTable(table); err != nil {
		return err
	}

	if _, err := c.conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
		return fmt.Errorf("failed to clear remote %s: %w", table, err)
	}
	return nil
}

// scanOne expects exactly one row from a RETURNING query.
func scanOne(rows *sql.Rows, table string) (map[string]any, error) {
	scanned, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		return nil, fmt.Errorf("remote %s: statement returned no row", table)
	}
	return scanned[0], nil
}

// scanRows converts a result set into generic column-keyed maps.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// sortedColumns returns the field names in deterministic order.
func sortedColumns(fields map[string]any) []string {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
