package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/leaderboard"
	"github.com/katnastou/bert-span-classifier/internal/store"
)

type leaderboardOptions struct {
	task   string
	top    int
	format string
}

func newLeaderboardCmd(st *cliState) *cobra.Command {
	var opts leaderboardOptions

	cmd := &cobra.Command{
		Use:     "leaderboard",
		Short:   "Rank checkpoints by best dev accuracy",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLeaderboardCmd(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.task, "task", "", "task name to filter")
	cmd.Flags().IntVar(&opts.top, "top", 20, "top N entries")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: table|json")

	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, st *cliState, opts *leaderboardOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("leaderboard: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("leaderboard: nil options")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	runs, err := reader.BestRuns(cmd.Context(), strings.TrimSpace(opts.task), opts.top)
	if err != nil {
		return err
	}
	entries := leaderboard.Build(runs)

	switch strings.ToLower(strings.TrimSpace(opts.format)) {
	case "", "table":
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tTASK\tCHECKPOINT\tBEST_ACC\tBEST_RUN\tRUNS\tLAST_RUN")
		for i, e := range entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%s\t%d\t%s\n",
				i+1,
				e.Task,
				e.InitCheckpoint,
				e.BestAccuracy,
				e.BestRunID,
				e.Runs,
				formatTime(e.LastRun),
			)
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	default:
		return fmt.Errorf("leaderboard: invalid --format %q (expected table|json)", opts.format)
	}
}
