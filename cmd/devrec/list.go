// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"devrec"
	"devrec/pkg/storage"

	"github.com/spf13/cobra"
)

func listCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recordings, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, s, func(app *devrec.App) error {
				return printRecordings(cmd.OutOrStdout(), app.Storage)
			})
		},
	}
}

func printRecordings(out io.Writer, s *storage.Manager) error {
	recordings, err := s.Recordings()
	if err != nil {
		return err
	}
	usage, err := s.Usage(0)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
	for _, rec := range recordings {
		fmt.Fprintf(w, "%v\t%v\t%v\n", rec.Name, storage.FormatSize(rec.Size), rec.ModTime.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d recordings, %v\n", len(recordings), usage.Formatted)
	return nil
}
