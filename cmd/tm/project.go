package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/ui"
)

var projectColor string

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "records",
	Short:   "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		p := &model.Project{Name: args[0], Color: projectColor}
		if err := a.records.CreateProject(context.Background(), p); err != nil {
			fail(err)
		}
		fmt.Printf("%s Created project %d: %s\n", ui.RenderPass("✓"), p.ID, p.Name)
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		ctx := context.Background()
		projects, err := a.records.ListProjects(ctx)
		if err != nil {
			fail(err)
		}
		if len(projects) == 0 {
			fmt.Println("No projects yet ('tm project add <name>')")
			return
		}

		for _, p := range projects {
			tasks, err := a.records.ListTasks(ctx, p.ID)
			if err != nil {
				fail(err)
			}
			fmt.Printf("%3d  %-24s %s\n", p.ID, p.Name,
				ui.RenderDim(fmt.Sprintf("%d task(s)", len(tasks))))
		}
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a project and all of its tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fail(fmt.Errorf("invalid project id %q", args[0]))
		}

		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if err := a.records.DeleteProject(context.Background(), id); err != nil {
			fail(err)
		}
		fmt.Printf("%s Deleted project %d\n", ui.RenderPass("✓"), id)
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectColor, "color", "", "display color")
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectRmCmd)
	rootCmd.AddCommand(projectCmd)
}
