// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"devrec"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type settings struct {
	envPath string
	quiet   bool
}

func rootCommand() *cobra.Command {
	s := &settings{}

	rootCmd := &cobra.Command{
		Use:           "devrec",
		Short:         "Record and replay device samples and media frames",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&s.envPath, "env", "", "path to env.yaml")
	rootCmd.PersistentFlags().BoolVarP(&s.quiet, "quiet", "q", false, "do not print logs")

	rootCmd.AddCommand(
		infoCommand(s),
		playCommand(s),
		stepCommand(s),
		simulateCommand(s),
		logsCommand(s),
		listCommand(s),
	)
	return rootCmd
}

// withApp runs fn with a started app and stops it afterwards.
func withApp(cmd *cobra.Command, s *settings, fn func(*devrec.App) error) error {
	app, err := devrec.NewApp(s.envPath)
	if err != nil {
		return err
	}
	if err := app.Start(cmd.Context(), !s.quiet); err != nil {
		app.Stop()
		return err
	}
	defer app.Stop()
	return fn(app)
}
