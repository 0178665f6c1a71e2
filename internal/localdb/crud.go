package localdb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/tidemark-app/tidemark/internal/model"
)

// Row is a generic record keyed by column name. Values are the driver's
// native types normalized to string/int64/float64/nil. It is an alias so
// rows flow between the store layers without conversion.
type Row = map[string]any

// RowID returns the row's integer id, or 0 if absent.
func RowID(r Row) int64 {
	id, _ := asInt64(r["id"])
	return id
}

// validTable guards against table name injection: only the tracked business
// tables and the sync control tables are addressable through the generic
// CRUD primitives.
func validTable(table string) error {
	if model.IsTracked(table) || table == "sync_metadata" || table == "sync_log" {
		return nil
	}
	return fmt.Errorf("unknown table %q", table)
}

// QueryAll returns every row in the table, ordered by id.
func (db *DB) QueryAll(ctx context.Context, table string) ([]Row, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	var out []Row
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY id`, table)
	err := db.withRetry(ctx, "query "+table, func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", table, err)
		}
		defer rows.Close()

		out, err = scanRows(rows)
		return err
	})
	return out, err
}

// QueryOne returns the row with the given id, or ErrNotFound.
func (db *DB) QueryOne(ctx context.Context, table string, id int64) (Row, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	var out Row
	query := fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, table)
	err := db.withRetry(ctx, "query "+table, func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("failed to query %s: %w", table, err)
		}
		defer rows.Close()

		scanned, err := scanRows(rows)
		if err != nil {
			return err
		}
		if len(scanned) == 0 {
			return ErrNotFound
		}
		out = scanned[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insert adds a row and returns its id. If fields contains an "id" key the
// given id is preserved (used by the download phase to keep cross-store
// identity aligned); otherwise SQLite assigns the next rowid.
func (db *DB) Insert(ctx context.Context, table string, fields Row) (int64, error) {
	if err := validTable(table); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("insert into %s: no fields", table)
	}

	cols := sortedColumns(fields)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = fields[c]
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(cols, ", "), placeholders)

	var id int64
	err := db.withRetry(ctx, "insert "+table, func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		if given, ok := asInt64(fields["id"]); ok && given != 0 {
			id = given
			return nil
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read insert id for %s: %w", table, err)
		}
		return nil
	})
	return id, err
}

// Update overwrites the given columns of the row with the given id.
// Returns ErrNotFound if no such row exists.
func (db *DB) Update(ctx context.Context, table string, id int64, fields Row) error {
	if err := validTable(table); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("update %s: no fields", table)
	}

	cols := sortedColumns(fields)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, fields[c])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, table, strings.Join(sets, ", "))

	return db.withRetry(ctx, "update "+table, func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update %s id=%d: %w", table, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected for %s: %w", table, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete removes the row with the given id.
// Returns ErrNotFound if no such row exists.
func (db *DB) Delete(ctx context.Context, table string, id int64) error {
	if err := validTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table)
	return db.withRetry(ctx, "delete "+table, func(conn *sql.DB) error {
		res, err := conn.ExecContext(ctx, query, id)
		if err != nil {
			return fmt.Errorf("failed to delete %s id=%d: %w", table, id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected for %s: %w", table, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Columns returns the column names of the table, introspected from the
// live schema. The sync engine uses this to filter remote rows down to the
// fields that are actually writable locally.
func (db *DB) Columns(ctx context.Context, table string) ([]string, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}

	var cols []string
	query := fmt.Sprintf(`PRAGMA table_info(%s)`, table)
	err := db.withRetry(ctx, "introspect "+table, func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to introspect %s: %w", table, err)
		}
		defer rows.Close()

		cols = cols[:0]
		for rows.Next() {
			var (
				cid       int
				name      string
				ctype     string
				notNull   int
				dfltValue sql.NullString
				pk        int
			)
			if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
				return fmt.Errorf("failed to scan column info for %s: %w", table, err)
			}
			cols = append(cols, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns (missing schema?)", table)
	}
	return cols, nil
}

// Exec runs a raw statement with retry. Used by the tracker for the
// metadata upsert, which doesn't fit the generic id-keyed primitives.
func (db *DB) Exec(ctx context.Context, query string, args ...any) error {
	return db.withRetry(ctx, "exec", func(conn *sql.DB) error {
		_, err := conn.ExecContext(ctx, query, args...)
		return err
	})
}

// Query runs a raw query with retry and returns generic rows.
func (db *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	var out []Row
	err := db.withRetry(ctx, "query", func(conn *sql.DB) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out, err = scanRows(rows)
		return err
	})
	return out, err
}

// scanRows converts a result set into generic Row maps.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = normalize(vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// normalize maps driver byte slices to strings so Row values compare cleanly.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// sortedColumns returns the field names in deterministic order.
func sortedColumns(fields Row) []string {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// asInt64 coerces the numeric types a Row value can hold into int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
