package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/ui"
)

var tagColor string

var tagCmd = &cobra.Command{
	Use:     "tag",
	GroupID: "records",
	Short:   "Manage tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		g := &model.Tag{Name: args[0], Color: tagColor}
		if err := a.records.CreateTag(context.Background(), g); err != nil {
			fail(err)
		}
		fmt.Printf("%s Created tag %d: #%s\n", ui.RenderPass("✓"), g.ID, g.Name)
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		tags, err := a.records.ListTags(context.Background())
		if err != nil {
			fail(err)
		}
		if len(tags) == 0 {
			fmt.Println("No tags yet ('tm tag add <name>')")
			return
		}
		for _, g := range tags {
			fmt.Printf("%3d  %s\n", g.ID, ui.RenderAccent("#"+g.Name))
		}
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a tag and detach it from all tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fail(fmt.Errorf("invalid tag id %q", args[0]))
		}

		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if err := a.records.DeleteTag(context.Background(), id); err != nil {
			fail(err)
		}
		fmt.Printf("%s Deleted tag %d\n", ui.RenderPass("✓"), id)
	},
}

var tagAttachCmd = &cobra.Command{
	Use:   "attach <task-id> <tag-id>",
	Short: "Attach a tag to a task",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, tagID, err := parseIDPair(args)
		if err != nil {
			fail(err)
		}

		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if err := a.records.AttachTag(context.Background(), taskID, tagID); err != nil {
			fail(err)
		}
		fmt.Printf("%s Tagged task %d\n", ui.RenderPass("✓"), taskID)
	},
}

var tagDetachCmd = &cobra.Command{
	Use:   "detach <task-id> <tag-id>",
	Short: "Detach a tag from a task",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		taskID, tagID, err := parseIDPair(args)
		if err != nil {
			fail(err)
		}

		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if err := a.records.DetachTag(context.Background(), taskID, tagID); err != nil {
			fail(err)
		}
		fmt.Printf("%s Untagged task %d\n", ui.RenderPass("✓"), taskID)
	},
}

func parseIDPair(args []string) (int64, int64, error) {
	taskID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid task id %q", args[0])
	}
	tagID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid tag id %q", args[1])
	}
	return taskID, tagID, nil
}

func init() {
	tagAddCmd.Flags().StringVar(&tagColor, "color", "", "display color")
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagAttachCmd)
	tagCmd.AddCommand(tagDetachCmd)
	rootCmd.AddCommand(tagCmd)
}
