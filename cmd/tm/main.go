// Command tm is the tidemark CLI: an offline-first project/task/tag
// manager that syncs a local SQLite database with a remote libSQL store.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tidemark-app/tidemark/internal/config"
	"github.com/tidemark-app/tidemark/internal/engine"
	"github.com/tidemark-app/tidemark/internal/localdb"
	"github.com/tidemark-app/tidemark/internal/records"
	"github.com/tidemark-app/tidemark/internal/remotedb"
	"github.com/tidemark-app/tidemark/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:   "tm",
	Short: "Offline-first task manager with cloud sync",
	Long: `tidemark manages projects, tasks, and tags in a local SQLite
database and keeps it reconciled with a remote libSQL store.

All mutations work offline; run 'tm sync' (or 'tm daemon') to push
pending changes and pull remote ones.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Records"},
		&cobra.Group{ID: "sync", Title: "Sync"},
	)
}

// app bundles the wired-up services a command needs.
type app struct {
	cfg     *config.Config
	db      *localdb.DB
	remote  *remotedb.Client
	tracker *tracker.Tracker
	engine  *engine.Engine
	records *records.Service
}

// openApp loads config and wires the services. The returned cleanup
// function closes the stores and must be deferred by the caller.
func openApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db, err := localdb.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	tr := tracker.New(db, nil)

	var (
		client      *remotedb.Client
		remoteStore engine.RemoteStore
	)
	if cfg.Configured() {
		client, err = remotedb.Open(remotedb.Config{
			URL:       cfg.RemoteURL,
			AuthToken: cfg.RemoteAuthToken,
		})
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		remoteStore = client
	}

	eng := engine.New(db, remoteStore, tr, nil, &engine.Config{
		BatchSize: cfg.BatchSize,
	})

	a := &app{
		cfg:     cfg,
		db:      db,
		remote:  client,
		tracker: tr,
		engine:  eng,
		records: records.New(db, tr, nil),
	}

	cleanup := func() {
		if client != nil {
			_ = client.Close()
		}
		_ = db.Close()
	}
	return a, cleanup, nil
}

// fail prints the error and exits. Used by command Run funcs.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func main() {
	log.SetFlags(log.LstdFlags)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
