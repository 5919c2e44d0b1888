// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"
	"time"

	"devrec"
	"devrec/pkg/log"

	"github.com/spf13/cobra"
)

func logsCommand(s *settings) *cobra.Command {
	var (
		levels  []string
		sources []string
		devices []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print saved logs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := log.Query{
				Sources: sources,
				Devices: devices,
				Limit:   limit,
			}
			for _, l := range levels {
				level, err := log.ParseLevel(l)
				if err != nil {
					return err
				}
				q.Levels = append(q.Levels, level)
			}

			// Do not print the logs of this command.
			s.quiet = true
			return withApp(cmd, s, func(app *devrec.App) error {
				return printLogs(cmd.OutOrStdout(), app.LogDB, q)
			})
		},
	}
	cmd.Flags().StringSliceVar(&levels, "level", nil, "levels to include")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "sources to include")
	cmd.Flags().StringSliceVar(&devices, "device", nil, "devices to include")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of logs")
	return cmd
}

func printLogs(out io.Writer, db *log.DB, q log.Query) error {
	logs, err := db.Query(q)
	if err != nil {
		return err
	}
	for _, l := range logs {
		t := time.UnixMicro(int64(l.Time))
		fmt.Fprintf(out, "%v %v\n", t.Format("2006-01-02 15:04:05.000"), l)
	}
	return nil
}
