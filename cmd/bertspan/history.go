package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/store"
)

type historyOptions struct {
	task       string
	checkpoint string
	limit      int
	since      string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:               "history",
		Short:             "Show fine-tuning run history",
		Args:              cobra.NoArgs,
		PersistentPreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.task, "task", "", "task name to filter")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "checkpoint path substring to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only runs since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	filter := store.RunFilter{
		Task:       strings.TrimSpace(opts.task),
		Checkpoint: strings.TrimSpace(opts.checkpoint),
		Since:      since,
		Limit:      opts.limit,
	}
	runs, err := reader.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tCREATED\tTASK\tCHECKPOINT\tSEQ\tBATCH\tLR\tEPOCHS\tACCURACY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%g\t%d\t%s\n",
			r.ID,
			formatTime(r.CreatedAt),
			r.Task,
			r.InitCheckpoint,
			r.MaxSeqLength,
			r.BatchSize,
			r.LearningRate,
			r.NumTrainEpochs,
			formatAccuracy(r.Accuracy),
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, runID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: missing run id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	run, err := reader.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Created: %s\n", formatTime(run.CreatedAt))
	_, _ = fmt.Fprintf(out, "Task: %s\n", run.Task)
	_, _ = fmt.Fprintf(out, "Checkpoint: %s\n", run.InitCheckpoint)
	_, _ = fmt.Fprintf(out, "Data dir: %s\n", run.DataDir)
	_, _ = fmt.Fprintf(out, "Hyperparameters: max_seq_length=%d batch_size=%d learning_rate=%g num_train_epochs=%d\n",
		run.MaxSeqLength, run.BatchSize, run.LearningRate, run.NumTrainEpochs)
	if run.OtherParameters != "" {
		_, _ = fmt.Fprintf(out, "Other parameters: %s\n", run.OtherParameters)
	}
	_, _ = fmt.Fprintf(out, "Accuracy: %s\n", formatAccuracy(run.Accuracy))
	if run.ModelDir != "" {
		_, _ = fmt.Fprintf(out, "Model dir: %s\n", run.ModelDir)
	}
	return nil
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func formatAccuracy(acc *float64) string {
	if acc == nil {
		return "-"
	}
	return strconv.FormatFloat(*acc, 'g', -1, 64)
}
