package records

import (
	"context"
	"fmt"
	"time"

	"github.com/tidemark-app/tidemark/internal/localdb"
	"github.com/tidemark-app/tidemark/internal/model"
)

// ListProjects returns all projects ordered by id.
func (s *Service) ListProjects(ctx context.Context) ([]*model.Project, error) {
	rows, err := s.db.QueryAll(ctx, model.TableProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	out := make([]*model.Project, 0, len(rows))
	for _, row := range rows {
		out = append(out, projectFromRow(row))
	}
	return out, nil
}

// GetProject returns one project, or localdb.ErrNotFound.
func (s *Service) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	row, err := s.db.QueryOne(ctx, model.TableProjects, id)
	if err != nil {
		return nil, err
	}
	return projectFromRow(row), nil
}

// ListTasks returns the tasks of a project ordered by id. projectID 0
// lists tasks across all projects.
func (s *Service) ListTasks(ctx context.Context, projectID int64) ([]*model.Task, error) {
	var (
		rows []localdb.Row
		err  error
	)
	if projectID == 0 {
		rows, err = s.db.QueryAll(ctx, model.TableTasks)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT * FROM tasks WHERE project_id = ? ORDER BY id`, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	out := make([]*model.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, taskFromRow(row))
	}
	return out, nil
}

// GetTask returns one task, or localdb.ErrNotFound.
func (s *Service) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row, err := s.db.QueryOne(ctx, model.TableTasks, id)
	if err != nil {
		return nil, err
	}
	return taskFromRow(row), nil
}

// ListTags returns all tags ordered by id.
func (s *Service) ListTags(ctx context.Context) ([]*model.Tag, error) {
	rows, err := s.db.QueryAll(ctx, model.TableTags)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	out := make([]*model.Tag, 0, len(rows))
	for _, row := range rows {
		out = append(out, tagFromRow(row))
	}
	return out, nil
}

// TagsOfTask returns the tags attached to a task.
func (s *Service) TagsOfTask(ctx context.Context, taskID int64) ([]*model.Tag, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.* FROM tags t
		JOIN task_tags tt ON tt.tag_id = t.id
		WHERE tt.task_id = ?
		ORDER BY t.id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags of task %d: %w", taskID, err)
	}

	out := make([]*model.Tag, 0, len(rows))
	for _, row := range rows {
		out = append(out, tagFromRow(row))
	}
	return out, nil
}

func projectFromRow(row localdb.Row) *model.Project {
	return &model.Project{
		ID:        localdb.RowID(row),
		Name:      rowStr(row, "name"),
		Color:     rowStr(row, "color"),
		CreatedAt: rowTime(row, "created_at"),
		UpdatedAt: rowTime(row, "updated_at"),
	}
}

func taskFromRow(row localdb.Row) *model.Task {
	t := &model.Task{
		ID:        localdb.RowID(row),
		Title:     rowStr(row, "title"),
		Notes:     rowStr(row, "notes"),
		Status:    rowStr(row, "status"),
		CreatedAt: rowTime(row, "created_at"),
		UpdatedAt: rowTime(row, "updated_at"),
	}
	if pid, ok := row["project_id"].(int64); ok {
		t.ProjectID = pid
	}
	if due := rowTime(row, "due_at"); !due.IsZero() {
		t.DueAt = &due
	}
	return t
}

func tagFromRow(row localdb.Row) *model.Tag {
	return &model.Tag{
		ID:        localdb.RowID(row),
		Name:      rowStr(row, "name"),
		Color:     rowStr(row, "color"),
		CreatedAt: rowTime(row, "created_at"),
	}
}

func rowStr(row localdb.Row, col string) string {
	s, _ := row[col].(string)
	return s
}

func rowTime(row localdb.Row, col string) time.Time {
	s, ok := row[col].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
