package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tidemark-app/tidemark/internal/daemon"
	"github.com/tidemark-app/tidemark/internal/dashboard"
	"github.com/tidemark-app/tidemark/internal/ui"
)

var daemonDashboard bool

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync daemon (foreground)",
	Long: `Run sync passes continuously: on a periodic timer and shortly
after local database activity. Only one pass runs at a time; triggers
that fire mid-pass are deferred to the next tick.

With --dashboard, a WebSocket server broadcasts sync status events so
monitoring clients can watch passes live.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, cleanup, err := openApp()
		if err != nil {
			fail(err)
		}
		defer cleanup()

		if a.remote == nil {
			fail(fmt.Errorf("remote store not configured (run 'tm login')"))
		}

		logger := log.New(os.Stderr, "[daemon] ", log.LstdFlags)
		if a.cfg.LogFile != "" {
			logger.SetOutput(&lumberjack.Logger{
				Filename:   a.cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     14, // days
			})
		}

		cfg := daemon.DefaultConfig()
		cfg.SyncInterval = a.cfg.SyncInterval
		cfg.Logger = logger

		d, err := daemon.New(a.engine, a.cfg.DatabasePath, cfg)
		if err != nil {
			fail(err)
		}

		if daemonDashboard {
			srv := dashboard.NewServer(a.engine.Bus(), &dashboard.Config{
				Port:   a.cfg.DashboardPort,
				Logger: logger,
			})
			if err := srv.Start(); err != nil {
				fail(err)
			}
			defer func() { _ = srv.Stop() }()
			fmt.Printf("%s Dashboard at ws://localhost:%d/ws\n",
				ui.RenderAccent("●"), a.cfg.DashboardPort)
		}

		fmt.Printf("%s Sync daemon running (interval %v), Ctrl+C to stop\n",
			ui.RenderAccent("●"), cfg.SyncInterval)

		ctx, stop := signal.NotifyContext(context.Background(),
			os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fail(err)
		}
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&daemonDashboard, "dashboard", false,
		"serve sync status events over WebSocket")
	rootCmd.AddCommand(daemonCmd)
}
