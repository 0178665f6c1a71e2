package localdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	return db
}

func insertProject(t *testing.T, db *DB, name string) int64 {
	t.Helper()

	id, err := db.Insert(context.Background(), "projects", Row{
		"name":       name,
		"created_at": "2026-01-01T00:00:00Z",
		"updated_at": "2026-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return id
}

func TestInsertAndQueryOne(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := insertProject(t, db, "inbox")
	if id == 0 {
		t.Fatal("Insert() returned id 0")
	}

	row, err := db.QueryOne(ctx, "projects", id)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	if got := row["name"]; got != "inbox" {
		t.Errorf("name = %v, want inbox", got)
	}
	if RowID(row) != id {
		t.Errorf("RowID() = %d, want %d", RowID(row), id)
	}
}

func TestInsertPreservesGivenID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.Insert(ctx, "projects", Row{
		"id":         int64(42),
		"name":       "imported",
		"created_at": "2026-01-01T00:00:00Z",
		"updated_at": "2026-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id != 42 {
		t.Errorf("Insert() id = %d, want 42", id)
	}

	if _, err := db.QueryOne(ctx, "projects", 42); err != nil {
		t.Errorf("QueryOne(42) error = %v", err)
	}
}

func TestQueryOneNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.QueryOne(context.Background(), "projects", 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("QueryOne() error = %v, want ErrNotFound", err)
	}
}

func TestQueryAllOrderedByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	insertProject(t, db, "a")
	insertProject(t, db, "b")
	insertProject(t, db, "c")

	rows, err := db.QueryAll(ctx, "projects")
	if err != nil {
		t.Fatalf("QueryAll() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("QueryAll() returned %d rows, want 3", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if RowID(rows[i]) <= RowID(rows[i-1]) {
			t.Errorf("rows out of order: id %d after %d", RowID(rows[i]), RowID(rows[i-1]))
		}
	}
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := insertProject(t, db, "before")
	if err := db.Update(ctx, "projects", id, Row{"name": "after"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	row, err := db.QueryOne(ctx, "projects", id)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	if row["name"] != "after" {
		t.Errorf("name = %v, want after", row["name"])
	}
}

func TestUpdateNotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), "projects", 999, Row{"name": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := insertProject(t, db, "doomed")
	if err := db.Delete(ctx, "projects", id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := db.QueryOne(ctx, "projects", id)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("QueryOne() after delete error = %v, want ErrNotFound", err)
	}

	if err := db.Delete(ctx, "projects", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestUnknownTableRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.QueryAll(ctx, "users; DROP TABLE projects"); err == nil {
		t.Error("QueryAll() with bad table succeeded, want error")
	}
	if _, err := db.Insert(ctx, "users", Row{"name": "x"}); err == nil {
		t.Error("Insert() into unknown table succeeded, want error")
	}
}

func TestColumns(t *testing.T) {
	db := newTestDB(t)

	cols, err := db.Columns(context.Background(), "tasks")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}

	want := []string{"id", "project_id", "title", "status"}
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		set[c] = true
	}
	for _, c := range want {
		if !set[c] {
			t.Errorf("Columns(tasks) missing %q, got %v", c, cols)
		}
	}
}

func TestRowValuesNormalized(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id := insertProject(t, db, "typed")
	row, err := db.QueryOne(ctx, "projects", id)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}

	if _, ok := row["name"].(string); !ok {
		t.Errorf("name is %T, want string", row["name"])
	}
	if _, ok := row["id"].(int64); !ok {
		t.Errorf("id is %T, want int64", row["id"])
	}
}
