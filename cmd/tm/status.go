package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync status",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		online := a.engine.CheckConnection(context.Background())
		st := a.engine.Status()

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("●"))
		fmt.Printf("Database:   %s\n", a.cfg.DatabasePath)
		if st.Configured {
			fmt.Printf("Remote:     %s\n", a.cfg.RemoteURL)
		} else {
			fmt.Printf("Remote:     %s\n", ui.RenderWarn("not configured (run 'tm login')"))
		}
		if online {
			fmt.Printf("Connection: %s\n", ui.RenderPass("online"))
		} else {
			fmt.Printf("Connection: %s\n", ui.RenderFail("offline"))
		}
		if st.InProgress {
			fmt.Printf("Pass:       %s\n", ui.RenderAccent("in progress"))
		}
		if st.LastSyncTime.IsZero() {
			fmt.Printf("Last sync:  %s\n", ui.RenderDim("never"))
		} else {
			fmt.Printf("Last sync:  %s\n", st.LastSyncTime.Format(time.RFC1123))
		}
		fmt.Println()
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "sync",
	Short:   "Show recent sync passes",
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		entries, err := a.engine.History(context.Background(), historyLimit)
		if err != nil {
			fail(err)
		}
		if len(entries) == 0 {
			fmt.Println("No sync passes recorded yet")
			return
		}

		for _, e := range entries {
			marker := ui.RenderPass("✓")
			if e.Status != "success" {
				marker = ui.RenderFail("✗")
			}
			line := fmt.Sprintf("%s %s  %-11s %s (%d records)",
				marker,
				e.StartedAt.Local().Format("2006-01-02 15:04:05"),
				e.SyncType,
				e.Message,
				e.RecordsSynced)
			fmt.Println(line)
			if e.ErrorDetail != "" {
				fmt.Printf("   %s\n", ui.RenderDim(e.ErrorDetail))
			}
		}
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of passes to show")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
}
