package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/tidemark-app/tidemark/internal/localdb"
	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/tracker"
)

func newTestService(t *testing.T) (*Service, *tracker.Tracker) {
	t.Helper()

	db, err := localdb.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	quiet := log.New(io.Discard, "", 0)
	tr := tracker.New(db, quiet)
	return New(db, tr, quiet), tr
}

func mustProject(t *testing.T, svc *Service, name string) *model.Project {
	t.Helper()

	p := &model.Project{Name: name}
	if err := svc.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func mustTask(t *testing.T, svc *Service, projectID int64, title string) *model.Task {
	t.Helper()

	task := &model.Task{ProjectID: projectID, Title: title}
	if err := svc.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return task
}

func mustTag(t *testing.T, svc *Service, name string) *model.Tag {
	t.Helper()

	g := &model.Tag{Name: name}
	if err := svc.CreateTag(context.Background(), g); err != nil {
		t.Fatalf("CreateTag() error = %v", err)
	}
	return g
}

// pendingSet returns "table/id" keys for every pending metadata row.
func pendingSet(t *testing.T, tr *tracker.Tracker) map[string]bool {
	t.Helper()

	metas, err := tr.ListPending(context.Background(), 100)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	set := make(map[string]bool, len(metas))
	for _, m := range metas {
		set[fmt.Sprintf("%s/%d", m.TableName, m.RecordID)] = true
	}
	return set
}

func TestCreateProjectMarksPending(t *testing.T) {
	svc, tr := newTestService(t)

	p := mustProject(t, svc, "inbox")
	if p.ID == 0 {
		t.Fatal("CreateProject() left ID unset")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("CreateProject() left timestamps unset")
	}

	if !pendingSet(t, tr)[fmt.Sprintf("projects/%d", p.ID)] {
		t.Error("created project not marked pending")
	}
}

func TestCreateProjectValidates(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.CreateProject(context.Background(), &model.Project{})
	if err == nil {
		t.Error("CreateProject() accepted a project without a name")
	}
}

func TestUpdateProjectRemarksPending(t *testing.T) {
	svc, tr := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, svc, "before")

	// Simulate a completed sync, then edit again.
	rid := p.ID
	if err := tr.UpdateStatus(ctx, model.TableProjects, p.ID, tracker.StatusSynced, &rid); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	p.Name = "after"
	if err := svc.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	metas, err := tr.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("ListPending() returned %d rows, want 1", len(metas))
	}
	// The stored remote id must survive the re-mark.
	if metas[0].RemoteID == nil || *metas[0].RemoteID != rid {
		t.Errorf("remote id = %v, want %d", metas[0].RemoteID, rid)
	}

	got, err := svc.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Name != "after" {
		t.Errorf("name = %q, want after", got.Name)
	}
}

func TestUpdateProjectNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.UpdateProject(context.Background(), &model.Project{ID: 999, Name: "ghost"})
	if !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("UpdateProject() error = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskRequiresExistingProject(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.CreateTask(context.Background(), &model.Task{ProjectID: 999, Title: "orphan"})
	if !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("CreateTask() error = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskDefaultsToOpen(t *testing.T) {
	svc, _ := newTestService(t)

	p := mustProject(t, svc, "inbox")
	task := mustTask(t, svc, p.ID, "first")
	if task.Status != model.TaskStatusOpen {
		t.Errorf("status = %q, want %q", task.Status, model.TaskStatusOpen)
	}
}

func TestDeleteTaskCleansJunctionRows(t *testing.T) {
	svc, tr := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, svc, "inbox")
	task := mustTask(t, svc, p.ID, "tagged")
	g := mustTag(t, svc, "urgent")

	if err := svc.AttachTag(ctx, task.ID, g.ID); err != nil {
		t.Fatalf("AttachTag() error = %v", err)
	}

	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}

	tags, err := svc.TagsOfTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("TagsOfTask() error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("task still has %d tag(s) after delete", len(tags))
	}

	// Both the task and the junction row left pending tombstones.
	pending := pendingSet(t, tr)
	if !pending[fmt.Sprintf("tasks/%d", task.ID)] {
		t.Error("deleted task not marked pending")
	}
	if !pending["task_tags/1"] {
		t.Error("deleted junction row not marked pending")
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	svc, tr := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, svc, "doomed")
	t1 := mustTask(t, svc, p.ID, "a")
	t2 := mustTask(t, svc, p.ID, "b")

	if err := svc.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	if _, err := svc.GetProject(ctx, p.ID); !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("GetProject() error = %v, want ErrNotFound", err)
	}
	for _, id := range []int64{t1.ID, t2.ID} {
		if _, err := svc.GetTask(ctx, id); !errors.Is(err, localdb.ErrNotFound) {
			t.Errorf("GetTask(%d) error = %v, want ErrNotFound", id, err)
		}
	}

	// The service deletes the tasks itself rather than leaning on the
	// schema's cascade, so every removed row has a pending tombstone.
	pending := pendingSet(t, tr)
	if !pending[fmt.Sprintf("projects/%d", p.ID)] {
		t.Error("deleted project not marked pending")
	}
	for _, id := range []int64{t1.ID, t2.ID} {
		if !pending[fmt.Sprintf("tasks/%d", id)] {
			t.Errorf("deleted task %d not marked pending", id)
		}
	}
}

func TestAttachTagValidatesBothSides(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, svc, "inbox")
	task := mustTask(t, svc, p.ID, "x")
	g := mustTag(t, svc, "urgent")

	if err := svc.AttachTag(ctx, 999, g.ID); !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("AttachTag(bad task) error = %v, want ErrNotFound", err)
	}
	if err := svc.AttachTag(ctx, task.ID, 999); !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("AttachTag(bad tag) error = %v, want ErrNotFound", err)
	}
}

func TestDetachTag(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, svc, "inbox")
	task := mustTask(t, svc, p.ID, "x")
	g := mustTag(t, svc, "urgent")

	if err := svc.AttachTag(ctx, task.ID, g.ID); err != nil {
		t.Fatalf("AttachTag() error = %v", err)
	}
	if err := svc.DetachTag(ctx, task.ID, g.ID); err != nil {
		t.Fatalf("DetachTag() error = %v", err)
	}

	tags, err := svc.TagsOfTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("TagsOfTask() error = %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("task still has %d tag(s) after detach", len(tags))
	}

	if err := svc.DetachTag(ctx, task.ID, g.ID); !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("second DetachTag() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTagDetachesEverywhere(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p := mustProject(t, svc, "inbox")
	t1 := mustTask(t, svc, p.ID, "a")
	t2 := mustTask(t, svc, p.ID, "b")
	g := mustTag(t, svc, "shared")

	for _, id := range []int64{t1.ID, t2.ID} {
		if err := svc.AttachTag(ctx, id, g.ID); err != nil {
			t.Fatalf("AttachTag() error = %v", err)
		}
	}

	if err := svc.DeleteTag(ctx, g.ID); err != nil {
		t.Fatalf("DeleteTag() error = %v", err)
	}

	for _, id := range []int64{t1.ID, t2.ID} {
		tags, err := svc.TagsOfTask(ctx, id)
		if err != nil {
			t.Fatalf("TagsOfTask() error = %v", err)
		}
		if len(tags) != 0 {
			t.Errorf("task %d still has %d tag(s)", id, len(tags))
		}
	}
}

func TestListTasksFiltersByProject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p1 := mustProject(t, svc, "one")
	p2 := mustProject(t, svc, "two")
	mustTask(t, svc, p1.ID, "a")
	mustTask(t, svc, p1.ID, "b")
	mustTask(t, svc, p2.ID, "c")

	scoped, err := svc.ListTasks(ctx, p1.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("ListTasks(p1) returned %d tasks, want 2", len(scoped))
	}

	all, err := svc.ListTasks(ctx, 0)
	if err != nil {
		t.Fatalf("ListTasks(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("ListTasks(0) returned %d tasks, want 3", len(all))
	}
}
