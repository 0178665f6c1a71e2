package export

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
)

type fakeLocal struct {
	tables map[string][]map[string]any
	errFor map[string]error
}

func (f *fakeLocal) QueryAll(_ context.Context, table string) ([]map[string]any, error) {
	if err := f.errFor[table]; err != nil {
		return nil, err
	}
	return f.tables[table], nil
}

type fakeRemote struct {
	rows      map[string][]map[string]any
	insertErr map[string]error
	clearErr  map[string]error
	cleared   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string][]map[string]any)}
}

func (f *fakeRemote) Select(_ context.Context, table string) ([]map[string]any, error) {
	return f.rows[table], nil
}

func (f *fakeRemote) Insert(_ context.Context, table string, fields map[string]any) (map[string]any, error) {
	if err := f.insertErr[table]; err != nil {
		return nil, err
	}
	f.rows[table] = append(f.rows[table], fields)
	return fields, nil
}

func (f *fakeRemote) DeleteAll(_ context.Context, table string) error {
	if err := f.clearErr[table]; err != nil {
		return err
	}
	f.cleared = append(f.cleared, table)
	f.rows[table] = nil
	return nil
}

func newTestExporter(local *fakeLocal, remote *fakeRemote) *Exporter {
	return New(local, remote, log.New(io.Discard, "", 0))
}

func project(id int64, name string) map[string]any {
	return map[string]any{"id": id, "name": name}
}

func TestExportAllCopiesRowsWithIDs(t *testing.T) {
	local := &fakeLocal{tables: map[string][]map[string]any{
		"projects": {project(1, "inbox"), project(2, "work")},
		"tasks":    {{"id": int64(1), "project_id": int64(1), "title": "a", "status": "open"}},
	}}
	remote := newFakeRemote()

	report, err := newTestExporter(local, remote).ExportAll(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	if report.Exported != 3 {
		t.Errorf("exported = %d, want 3", report.Exported)
	}
	if report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("failed = %d skipped = %d, want 0/0", report.Failed, report.Skipped)
	}

	if len(remote.rows["projects"]) != 2 {
		t.Fatalf("remote projects = %d rows, want 2", len(remote.rows["projects"]))
	}
	// Local ids travel with the rows: export seeds the shared id space.
	if remote.rows["projects"][0]["id"] != int64(1) {
		t.Errorf("remote row id = %v, want 1", remote.rows["projects"][0]["id"])
	}

	stats := report.Tables["projects"]
	if stats.Exported != 2 {
		t.Errorf("projects exported = %d, want 2", stats.Exported)
	}
}

func TestExportClearsRemoteDependentsFirst(t *testing.T) {
	local := &fakeLocal{tables: map[string][]map[string]any{}}
	remote := newFakeRemote()

	_, err := newTestExporter(local, remote).ExportAll(context.Background(),
		Options{ClearRemoteFirst: true})
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}

	want := []string{"task_tags", "tasks", "tags", "projects"}
	if len(remote.cleared) != len(want) {
		t.Fatalf("cleared = %v, want %v", remote.cleared, want)
	}
	for i := range want {
		if remote.cleared[i] != want[i] {
			t.Fatalf("cleared = %v, want %v", remote.cleared, want)
		}
	}
}

func TestExportAbortsWhenClearFails(t *testing.T) {
	local := &fakeLocal{tables: map[string][]map[string]any{
		"projects": {project(1, "inbox")},
	}}
	remote := newFakeRemote()
	remote.clearErr = map[string]error{"tasks": errors.New("permission denied")}

	_, err := newTestExporter(local, remote).ExportAll(context.Background(),
		Options{ClearRemoteFirst: true})
	if err == nil {
		t.Fatal("ExportAll() succeeded despite a failed clear")
	}
	if len(remote.rows["projects"]) != 0 {
		t.Error("rows were exported after the clear failed")
	}
}

func TestExportSkipsExistingRows(t *testing.T) {
	local := &fakeLocal{tables: map[string][]map[string]any{
		"projects": {project(1, "inbox"), project(2, "work")},
	}}
	remote := newFakeRemote()
	remote.rows["projects"] = []map[string]any{project(1, "inbox")}

	report, err := newTestExporter(local, remote).ExportAll(context.Background(),
		Options{SkipExisting: true})
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if report.Exported != 1 {
		t.Errorf("exported = %d, want 1", report.Exported)
	}
	if len(remote.rows["projects"]) != 2 {
		t.Errorf("remote projects = %d rows, want 2", len(remote.rows["projects"]))
	}
}

func TestExportCountsPerRecordFailures(t *testing.T) {
	local := &fakeLocal{tables: map[string][]map[string]any{
		"projects": {project(1, "a"), project(2, "b")},
		"tags":     {{"id": int64(1), "name": "urgent"}},
	}}
	remote := newFakeRemote()
	remote.insertErr = map[string]error{"projects": errors.New("constraint violation")}

	report, err := newTestExporter(local, remote).ExportAll(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ExportAll() error = %v (record failures must not abort)", err)
	}
	if report.Failed != 2 {
		t.Errorf("failed = %d, want 2", report.Failed)
	}
	// The other table still exported.
	if report.Tables["tags"].Exported != 1 {
		t.Errorf("tags exported = %d, want 1", report.Tables["tags"].Exported)
	}
}

func TestExportCountsUnreadableTableOnce(t *testing.T) {
	local := &fakeLocal{
		tables: map[string][]map[string]any{
			"tags": {{"id": int64(1), "name": "urgent"}},
		},
		errFor: map[string]error{"projects": errors.New("disk I/O error")},
	}
	remote := newFakeRemote()

	report, err := newTestExporter(local, remote).ExportAll(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}
	if report.Tables["projects"].Failed != 1 {
		t.Errorf("projects failed = %d, want 1", report.Tables["projects"].Failed)
	}
	if report.Tables["tags"].Exported != 1 {
		t.Errorf("tags exported = %d, want 1", report.Tables["tags"].Exported)
	}
}

func TestExportReportsProgress(t *testing.T) {
	local := &fakeLocal{tables: map[string][]map[string]any{
		"projects": {project(1, "a"), project(2, "b"), project(3, "c")},
	}}
	remote := newFakeRemote()

	var calls []Progress
	_, err := newTestExporter(local, remote).ExportAll(context.Background(), Options{
		OnProgress: func(p Progress) { calls = append(calls, p) },
	})
	if err != nil {
		t.Fatalf("ExportAll() error = %v", err)
	}

	var projectCalls []Progress
	for _, p := range calls {
		if p.Table == "projects" {
			projectCalls = append(projectCalls, p)
		}
	}
	if len(projectCalls) != 3 {
		t.Fatalf("progress called %d times for projects, want 3", len(projectCalls))
	}
	last := projectCalls[len(projectCalls)-1]
	if last.Exported != 3 || last.Total != 3 {
		t.Errorf("final progress = %+v, want exported 3 of 3", last)
	}
}
