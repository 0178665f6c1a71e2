// Package model defines the business record types and the fixed set of
// tables the sync engine operates on.
//
// Records are hierarchical: a Project contains Tasks, and Tasks carry Tags
// through the task_tags junction table. Every table uses an integer primary
// key; local and remote stores share the same id space by convention, which
// is what lets sync_metadata link the two sides with a single remote_id
// column (see the tracker package).
package model

import (
	"fmt"
	"time"
)

// Task status values.
const (
	TaskStatusOpen   = "open"
	TaskStatusDone   = "done"
	TaskStatusPaused = "paused"
)

// Project is a top-level container for tasks.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks that the project has the required fields.
func (p *Project) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	return nil
}

// Task belongs to exactly one project.
type Task struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"project_id"`
	Title     string     `json:"title"`
	Notes     string     `json:"notes,omitempty"`
	Status    string     `json:"status"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate checks that the task has the required fields.
func (t *Task) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("task title is required")
	}
	if t.ProjectID == 0 {
		return fmt.Errorf("task must belong to a project")
	}
	switch t.Status {
	case TaskStatusOpen, TaskStatusDone, TaskStatusPaused:
	default:
		return fmt.Errorf("invalid task status: %q", t.Status)
	}
	return nil
}

// Tag is a label attachable to any number of tasks.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the tag has the required fields.
func (g *Tag) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("tag name is required")
	}
	return nil
}
