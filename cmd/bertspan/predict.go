package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/data"
	"github.com/katnastou/bert-span-classifier/internal/trainer"
)

const testAccuracyPrefix = "Test accuracy:"

type predictOptions struct {
	batchSize  int
	labelField int
	textFields string
}

func newPredictCmd(st *cliState) *cobra.Command {
	var opts predictOptions

	cmd := &cobra.Command{
		Use:     "predict <model-dir> <test-data>",
		Short:   "Evaluate a trained model on a test set",
		Args:    cobra.ExactArgs(2),
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, st, &opts, args[0], args[1])
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch_size", 0, "prediction batch size (overrides config)")
	cmd.Flags().IntVar(&opts.labelField, "label_field", 0, "1-based label column; negative counts from the end (overrides config)")
	cmd.Flags().StringVar(&opts.textFields, "text_fields", "", "1-based text columns, comma-separated (overrides config)")

	return cmd
}

func runPredict(cmd *cobra.Command, st *cliState, opts *predictOptions, modelDir, testData string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("predict: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("predict: nil options")
	}
	cfg := st.cfg

	batchSize := opts.batchSize
	if batchSize <= 0 {
		batchSize = cfg.Training.BatchSize
	}
	labelField := opts.labelField
	if labelField == 0 {
		labelField = cfg.Training.LabelField
	}
	rawTextFields := strings.TrimSpace(opts.textFields)
	if rawTextFields == "" {
		rawTextFields = cfg.Training.TextFields
	}
	textFields, err := data.ParseTextFields(rawTextFields)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tr := trainer.New(newBackend(cfg), cmd.ErrOrStderr())
	out, err := tr.Predict(ctx, modelDir, testData, batchSize, labelField, textFields)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), testAccuracyPrefix) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(line))
			return nil
		}
	}
	return fmt.Errorf("predict: backend reported no %q line", testAccuracyPrefix)
}
