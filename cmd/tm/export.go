package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/export"
	"github.com/tidemark-app/tidemark/internal/model"
	"github.com/tidemark-app/tidemark/internal/ui"
)

var (
	exportClearRemote  bool
	exportSkipExisting bool
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "sync",
	Short:   "Copy the full local database to the remote store",
	Long: `One-shot full-table migration to the remote store, used for
initial seeding and recovery. Rows are copied with their local ids so
both stores share the same id space afterwards.

Unlike 'tm sync', export ignores sync metadata entirely.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if a.remote == nil {
			fail(fmt.Errorf("remote store not configured (run 'tm login')"))
		}

		fmt.Printf("%s Exporting to %s...\n", ui.RenderAccent("→"), a.cfg.RemoteURL)

		exporter := export.New(a.db, a.remote, nil)
		report, err := exporter.ExportAll(context.Background(), export.Options{
			ClearRemoteFirst: exportClearRemote,
			SkipExisting:     exportSkipExisting,
		})
		if err != nil {
			fail(err)
		}

		for _, table := range model.Tables {
			stats := report.Tables[table]
			fmt.Printf("   %-10s %d exported, %d skipped, %d failed\n",
				table, stats.Exported, stats.Skipped, stats.Failed)
		}

		marker := ui.RenderPass("✓")
		if report.Failed > 0 {
			marker = ui.RenderWarn("⚠")
		}
		fmt.Printf("%s Export complete in %v\n", marker,
			report.Duration.Round(time.Millisecond))
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportClearRemote, "clear-remote", false,
		"delete all remote rows first (clear-and-replace)")
	exportCmd.Flags().BoolVar(&exportSkipExisting, "skip-existing", false,
		"skip rows whose id already exists remotely")
	rootCmd.AddCommand(exportCmd)
}
