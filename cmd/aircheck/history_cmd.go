// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonband/aircheck/internal/config"
	"github.com/tonband/aircheck/internal/index"
)

func newHistoryCmd() *cobra.Command {
	var (
		indexPath string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List archived recording runs",
		Long: `Without arguments, history lists the most recent runs from the run
index. With a run ID it lists every stream outcome of that run.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := indexPath
			if path == "" {
				path = config.ParseString(config.EnvIndexPath, "")
			}
			if path == "" {
				return fmt.Errorf("no run index configured: pass --index or set %s", config.EnvIndexPath)
			}

			store, err := index.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if len(args) == 1 {
				return printRunRecordings(cmd, store, args[0])
			}
			return printRecentRuns(cmd, store, limit)
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "", "path to the run index database")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

func printRecentRuns(cmd *cobra.Command, store *index.Store, limit int) error {
	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("no archived runs")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tCOUNTRY\tSTARTED\tSTREAMS\tOK\tFAILED\tBYTES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.RunID, r.Country, r.StartedAt.Format(time.RFC3339),
			r.Streams, r.Succeeded, r.Failed, r.TotalBytes)
	}
	return w.Flush()
}

func printRunRecordings(cmd *cobra.Command, store *index.Store, runID string) error {
	recs, err := store.RunRecordings(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no recordings archived for run %q", runID)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "STREAM\tFILE\tBYTES\tSECONDS\tREASON\tERROR")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%s\t%s\n",
			r.Stream, r.File, r.Bytes, r.ElapsedSeconds, r.Reason, r.Error)
	}
	return w.Flush()
}
