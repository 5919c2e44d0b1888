// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"devrec"
	"devrec/pkg/container"

	"github.com/spf13/cobra"
)

func infoCommand(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Print the channels of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, s, func(app *devrec.App) error {
				return printInfo(cmd.OutOrStdout(), app.Env.RecordingPath(args[0]))
			})
		},
	}
}

func printInfo(out io.Writer, path string) error {
	r, err := container.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	stats, err := r.Stats()
	if err != nil {
		return fmt.Errorf("read samples: %w", err)
	}

	fmt.Fprintf(out, "recording: %v\n", path)
	fmt.Fprintf(out, "started:   %v\n", r.StartTime().Format(time.RFC3339))
	fmt.Fprintf(out, "duration:  %v\n\n", r.Duration())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAMPLE TYPE\tCONTENT TYPE\tSAMPLES\tFIRST\tLAST")
	for _, c := range r.Channels() {
		stat := stats[c.ID]
		fmt.Fprintf(w, "%d\t%v\t%v\t%v\t%d\t%.3f\t%.3f\n",
			c.ID, c.Name, c.SampleType, c.ContentType,
			stat.Samples, stat.FirstPlayback, stat.LastPlayback)
	}
	return w.Flush()
}
