package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tidemark-app/tidemark/internal/config"
	"github.com/tidemark-app/tidemark/internal/remotedb"
	"github.com/tidemark-app/tidemark/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "sync",
	Short:   "Configure the remote store credentials",
	Long: `Store the remote libsql URL and auth token in
~/.tidemark/config.toml and verify them with a connectivity check.

In non-interactive environments set TIDEMARK_REMOTE_URL and
TIDEMARK_REMOTE_AUTH_TOKEN instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fail(err)
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fail(fmt.Errorf("login is interactive; set TIDEMARK_REMOTE_URL and TIDEMARK_REMOTE_AUTH_TOKEN instead"))
		}

		url := cfg.RemoteURL
		token := cfg.RemoteAuthToken

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Remote database URL").
					Description("e.g. libsql://tidemark-you.turso.io").
					Value(&url),
				huh.NewInput().
					Title("Auth token").
					EchoMode(huh.EchoModePassword).
					Value(&token),
			),
		)
		if err := form.Run(); err != nil {
			fail(err)
		}

		client, err := remotedb.Open(remotedb.Config{URL: url, AuthToken: token})
		if err != nil {
			fail(err)
		}
		defer client.Close()

		fmt.Printf("%s Checking connection...\n", ui.RenderAccent("→"))
		if err := client.Ping(context.Background()); err != nil {
			fail(fmt.Errorf("connection check failed: %w", err))
		}

		cfg.RemoteURL = url
		cfg.RemoteAuthToken = token
		if err := config.Save(cfg); err != nil {
			fail(err)
		}

		fmt.Printf("%s Remote store configured\n", ui.RenderPass("✓"))
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
