package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/records"
	"github.com/tidemark-app/tidemark/internal/ui"
)

var (
	taskProjectID int64
	taskNotes     string
	taskDue       string
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "records",
	Short:   "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task in a project. The --due flag accepts natural
language ("tomorrow at 5pm", "next friday") as well as RFC 3339.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		t := &model.Task{
			ProjectID: taskProjectID,
			Title:     args[0],
			Notes:     taskNotes,
			Status:    model.TaskStatusOpen,
		}
		if taskDue != "" {
			due, err := parseDue(taskDue)
			if err != nil {
				fail(err)
			}
			t.DueAt = &due
		}

		if err := a.records.CreateTask(context.Background(), t); err != nil {
			fail(err)
		}
		fmt.Printf("%s Created task %d: %s\n", ui.RenderPass("✓"), t.ID, t.Title)
		if t.DueAt != nil {
			fmt.Printf("   due %s\n", ui.RenderDim(t.DueAt.Local().Format(time.RFC1123)))
		}
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		ctx := context.Background()
		tasks, err := a.records.ListTasks(ctx, taskProjectID)
		if err != nil {
			fail(err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks")
			return
		}

		for _, t := range tasks {
			fmt.Println(renderTaskLine(ctx, a.records, t))
		}
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fail(fmt.Errorf("invalid task id %q", args[0]))
		}

		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		ctx := context.Background()
		t, err := a.records.GetTask(ctx, id)
		if err != nil {
			fail(err)
		}
		t.Status = model.TaskStatusDone
		if err := a.records.UpdateTask(ctx, t); err != nil {
			fail(err)
		}
		fmt.Printf("%s Done: %s\n", ui.RenderPass("✓"), t.Title)
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fail(fmt.Errorf("invalid task id %q", args[0]))
		}

		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if err := a.records.DeleteTask(context.Background(), id); err != nil {
			fail(err)
		}
		fmt.Printf("%s Deleted task %d\n", ui.RenderPass("✓"), id)
	},
}

// parseDue tries RFC 3339 first, then natural language.
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", s)
	}
	return r.Time, nil
}

func renderTaskLine(ctx context.Context, svc *records.Service, t *model.Task) string {
	marker := " "
	switch t.Status {
	case model.TaskStatusDone:
		marker = ui.RenderPass("✓")
	case model.TaskStatusPaused:
		marker = ui.RenderWarn("~")
	}

	line := fmt.Sprintf("%3d %s %s", t.ID, marker, t.Title)

	if tags, err := svc.TagsOfTask(ctx, t.ID); err == nil && len(tags) > 0 {
		for _, g := range tags {
			line += " " + ui.RenderAccent("#"+g.Name)
		}
	}
	if t.DueAt != nil {
		due := t.DueAt.Local().Format("Jan 2 15:04")
		if t.DueAt.Before(time.Now()) && t.Status != model.TaskStatusDone {
			line += "  " + ui.RenderFail("due "+due)
		} else {
			line += "  " + ui.RenderDim("due "+due)
		}
	}
	return line
}

func init() {
	taskAddCmd.Flags().Int64VarP(&taskProjectID, "project", "p", 0, "project id (required)")
	taskAddCmd.Flags().StringVar(&taskNotes, "notes", "", "free-form notes")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "due date (natural language or RFC 3339)")
	_ = taskAddCmd.MarkFlagRequired("project")

	taskListCmd.Flags().Int64VarP(&taskProjectID, "project", "p", 0, "filter by project id")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
