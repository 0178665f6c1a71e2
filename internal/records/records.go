// Package records is the mutation boundary for business data.
//
// The UI layer (CLI commands here) goes through this service for every
// create/update/delete so each mutation is paired with its sync tracking:
// the row is written to the local store, then the change tracker marks it
// pending. Tracking failures never fail the mutation.
//
// Referential cleanup is explicit: deleting a task removes its junction
// rows first, and deleting a project walks its tasks one by one, so every
// removed row leaves a tombstone the next sync pass can push.
package records

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tidemark-app/tidemark/internal/localdb"
	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/tracker"
)

// Service executes tracked mutations against the local store.
type Service struct {
	db      *localdb.DB
	tracker *tracker.Tracker
	logger  *log.Logger
	now     func() time.Time
}

// New creates a records Service.
// If logger is nil, a default logger writing to stderr is used.
func New(db *localdb.DB, tr *tracker.Tracker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[records] ", log.LstdFlags)
	}
	return &Service{db: db, tracker: tr, logger: logger, now: time.Now}
}

// SetClock replaces the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateProject inserts a project and marks it pending.
// The project's ID and timestamps are filled in on success.
func (s *Service) CreateProject(ctx context.Context, p *model.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	id, err := s.db.Insert(ctx, model.TableProjects, localdb.Row{
		"name":       p.Name,
		"color":      nullable(p.Color),
		"created_at": now.Format(time.RFC3339),
		"updated_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	p.ID = id

	s.tracker.MarkPending(ctx, model.TableProjects, id, nil)
	return nil
}

// UpdateProject overwrites a project's mutable fields and re-marks it
// pending. Returns localdb.ErrNotFound if the project doesn't exist.
func (s *Service) UpdateProject(ctx context.Context, p *model.Project) error {
	if err := p.Validate(); err != nil {
		return err
	}

	p.UpdatedAt = s.now().UTC()
	err := s.db.Update(ctx, model.TableProjects, p.ID, localdb.Row{
		"name":       p.Name,
		"color":      nullable(p.Color),
		"updated_at": p.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to update project %d: %w", p.ID, err)
	}

	s.tracker.MarkPending(ctx, model.TableProjects, p.ID, nil)
	return nil
}

// DeleteProject removes a project and all of its tasks. Each task goes
// through DeleteTask so junction rows are cleaned up and every deletion
// leaves its own tombstone.
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	tasks, err := s.ListTasks(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list tasks of project %d: %w", id, err)
	}
	for _, task := range tasks {
		if err := s.DeleteTask(ctx, task.ID); err != nil {
			return err
		}
	}

	if err := s.db.Delete(ctx, model.TableProjects, id); err != nil {
		return fmt.Errorf("failed to delete project %d: %w", id, err)
	}

	s.tracker.MarkPending(ctx, model.TableProjects, id, nil)
	return nil
}

// CreateTask inserts a task under its project and marks it pending.
func (s *Service) CreateTask(ctx context.Context, t *model.Task) error {
	if t.Status == "" {
		t.Status = model.TaskStatusOpen
	}
	if err := t.Validate(); err != nil {
		return err
	}

	// The project must exist; a dangling task would fail remote insert
	// on every pass.
	if _, err := s.db.QueryOne(ctx, model.TableProjects, t.ProjectID); err != nil {
		return fmt.Errorf("project %d: %w", t.ProjectID, err)
	}

	now := s.now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	id, err := s.db.Insert(ctx, model.TableTasks, localdb.Row{
		"project_id": t.ProjectID,
		"title":      t.Title,
		"notes":      nullable(t.Notes),
		"status":     t.Status,
		"due_at":     timePtr(t.DueAt),
		"created_at": now.Format(time.RFC3339),
		"updated_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	t.ID = id

	s.tracker.MarkPending(ctx, model.TableTasks, id, nil)
	return nil
}

// UpdateTask overwrites a task's mutable fields and re-marks it pending.
// Returns localdb.ErrNotFound if the task doesn't exist.
func (s *Service) UpdateTask(ctx context.Context, t *model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}

	t.UpdatedAt = s.now().UTC()
	err := s.db.Update(ctx, model.TableTasks, t.ID, localdb.Row{
		"project_id": t.ProjectID,
		"title":      t.Title,
		"notes":      nullable(t.Notes),
		"status":     t.Status,
		"due_at":     timePtr(t.DueAt),
		"updated_at": t.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}

	s.tracker.MarkPending(ctx, model.TableTasks, t.ID, nil)
	return nil
}

// DeleteTask removes a task, cleaning up its junction rows first.
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	links, err := s.db.Query(ctx,
		`SELECT id FROM task_tags WHERE task_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to list tag links of task %d: %w", id, err)
	}
	for _, link := range links {
		linkID := localdb.RowID(link)
		if err := s.db.Delete(ctx, model.TableTaskTags, linkID); err != nil {
			return fmt.Errorf("failed to delete tag link %d: %w", linkID, err)
		}
		s.tracker.MarkPending(ctx, model.TableTaskTags, linkID, nil)
	}

	if err := s.db.Delete(ctx, model.TableTasks, id); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}

	s.tracker.MarkPending(ctx, model.TableTasks, id, nil)
	return nil
}

// CreateTag inserts a tag and marks it pending.
func (s *Service) CreateTag(ctx context.Context, g *model.Tag) error {
	if err := g.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	g.CreatedAt = now

	id, err := s.db.Insert(ctx, model.TableTags, localdb.Row{
		"name":       g.Name,
		"color":      nullable(g.Color),
		"created_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	g.ID = id

	s.tracker.MarkPending(ctx, model.TableTags, id, nil)
	return nil
}

// DeleteTag removes a tag and any junction rows pointing at it.
func (s *Service) DeleteTag(ctx context.Context, id int64) error {
	links, err := s.db.Query(ctx,
		`SELECT id FROM task_tags WHERE tag_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to list task links of tag %d: %w", id, err)
	}
	for _, link := range links {
		linkID := localdb.RowID(link)
		if err := s.db.Delete(ctx, model.TableTaskTags, linkID); err != nil {
			return fmt.Errorf("failed to delete tag link %d: %w", linkID, err)
		}
		s.tracker.MarkPending(ctx, model.TableTaskTags, linkID, nil)
	}

	if err := s.db.Delete(ctx, model.TableTags, id); err != nil {
		return fmt.Errorf("failed to delete tag %d: %w", id, err)
	}

	s.tracker.MarkPending(ctx, model.TableTags, id, nil)
	return nil
}

// AttachTag links a tag to a task and marks the junction row pending.
func (s *Service) AttachTag(ctx context.Context, taskID, tagID int64) error {
	if _, err := s.db.QueryOne(ctx, model.TableTasks, taskID); err != nil {
		return fmt.Errorf("task %d: %w", taskID, err)
	}
	if _, err := s.db.QueryOne(ctx, model.TableTags, tagID); err != nil {
		return fmt.Errorf("tag %d: %w", tagID, err)
	}

	id, err := s.db.Insert(ctx, model.TableTaskTags, localdb.Row{
		"task_id": taskID,
		"tag_id":  tagID,
	})
	if err != nil {
		return fmt.Errorf("failed to attach tag %d to task %d: %w", tagID, taskID, err)
	}

	s.tracker.MarkPending(ctx, model.TableTaskTags, id, nil)
	return nil
}

// DetachTag removes the link between a task and a tag.
func (s *Service) DetachTag(ctx context.Context, taskID, tagID int64) error {
	links, err := s.db.Query(ctx,
		`SELECT id FROM task_tags WHERE task_id = ? AND tag_id = ?`, taskID, tagID)
	if err != nil {
		return fmt.Errorf("failed to find tag link: %w", err)
	}
	if len(links) == 0 {
		return fmt.Errorf("tag link task=%d tag=%d: %w", taskID, tagID, localdb.ErrNotFound)
	}

	linkID := localdb.RowID(links[0])
	if err := s.db.Delete(ctx, model.TableTaskTags, linkID); err != nil {
		return fmt.Errorf("failed to detach tag %d from task %d: %w", tagID, taskID, err)
	}

	s.tracker.MarkPending(ctx, model.TableTaskTags, linkID, nil)
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
