package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/ui"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync pass against the remote store",
	Long: `Run one complete sync pass:

  1. Check connectivity with a lightweight remote read
  2. Upload pending local changes (oldest first, batched)
  3. Download remote tables and merge them locally
  4. Record the pass in the sync history

Per-record failures are isolated: a failing record is marked for retry
and the rest of the batch still runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if a.remote == nil {
			fail(fmt.Errorf("remote store not configured (run 'tm login')"))
		}

		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("→"), a.cfg.RemoteURL)

		res := a.engine.Sync(context.Background(), syncForce)
		if !res.Success {
			fmt.Printf("%s Sync failed: %s\n", ui.RenderFail("✗"), res.Message)
			return
		}

		fmt.Printf("%s %s in %v\n", ui.RenderPass("✓"), res.Message,
			res.Duration.Round(time.Millisecond))
	},
}

var syncResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all sync metadata and history",
	Long: `Forget everything sync knows: every record looks untouched
afterwards, and the next pass re-uploads nothing until records are
mutated again. The sync history log is cleared as well.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if err := a.tracker.Reset(context.Background()); err != nil {
			fail(err)
		}
		fmt.Printf("%s Sync metadata and history cleared\n", ui.RenderPass("✓"))
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false,
		"bypass staleness checks (does not preempt a running pass)")
	syncCmd.AddCommand(syncResetCmd)
	rootCmd.AddCommand(syncCmd)
}
