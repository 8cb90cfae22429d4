package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/data"
	"github.com/katnastou/bert-span-classifier/internal/result"
	"github.com/katnastou/bert-span-classifier/internal/trainer"
)

type trainOptions struct {
	taskName       string
	initCheckpoint string
	vocabFile      string
	bertConfigFile string
	trainData      string
	devData        string
	labels         string
	labelField     int
	textFields     string
	replaceSpanA   string
	replaceSpanB   string
	maxSeqLength   int
	batchSize      int
	numTrainEpochs int
	learningRate   float64
	warmupProp     float64
	doLowerCase    bool
	modelDir       string
}

func newTrainCmd(st *cliState) *cobra.Command {
	var opts trainOptions

	cmd := &cobra.Command{
		Use:     "train",
		Short:   "Run one fine-tuning pass against the training backend",
		Args:    cobra.NoArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.taskName, "task_name", "span", "task name recorded with the run")
	cmd.Flags().StringVar(&opts.initCheckpoint, "init_checkpoint", "", "pretrained checkpoint prefix")
	cmd.Flags().StringVar(&opts.vocabFile, "vocab_file", "", "vocabulary file")
	cmd.Flags().StringVar(&opts.bertConfigFile, "bert_config_file", "", "model configuration file")
	cmd.Flags().StringVar(&opts.trainData, "train_data", "", "comma-separated training files (.tsv or .tfrecord)")
	cmd.Flags().StringVar(&opts.devData, "dev_data", "", "development set TSV")
	cmd.Flags().StringVar(&opts.labels, "labels", "", "label file, one label per line")
	cmd.Flags().IntVar(&opts.labelField, "label_field", 0, "1-based label column; negative counts from the end (overrides config)")
	cmd.Flags().StringVar(&opts.textFields, "text_fields", "", "1-based text columns, comma-separated (overrides config)")
	cmd.Flags().StringVar(&opts.replaceSpanA, "replace_span_A", "", "token substituted for marked span A")
	cmd.Flags().StringVar(&opts.replaceSpanB, "replace_span_B", "", "token substituted for marked span B")
	cmd.Flags().IntVar(&opts.maxSeqLength, "max_seq_length", 0, "maximum sequence length (overrides config)")
	cmd.Flags().IntVar(&opts.batchSize, "batch_size", 0, "training batch size (overrides config)")
	cmd.Flags().IntVar(&opts.numTrainEpochs, "num_train_epochs", 0, "training epochs (overrides config)")
	cmd.Flags().Float64Var(&opts.learningRate, "learning_rate", 0, "peak learning rate (overrides config)")
	cmd.Flags().Float64Var(&opts.warmupProp, "warmup_proportion", -1, "fraction of steps spent warming up (overrides config)")
	cmd.Flags().BoolVar(&opts.doLowerCase, "do_lower_case", false, "lower-case input text")
	cmd.Flags().StringVar(&opts.modelDir, "model_dir", "", "directory for trained model artifacts")

	return cmd
}

func runTrain(cmd *cobra.Command, st *cliState, opts *trainOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("train: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("train: nil options")
	}

	spec, err := buildTrainSpec(st, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tr := trainer.New(newBackend(st.cfg), cmd.ErrOrStderr())
	outcome, err := tr.Run(ctx, spec)
	if err != nil {
		return err
	}

	if outcome.Accuracy != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %g\n", result.AccuracyPrefix, *outcome.Accuracy)
	}
	return nil
}

func buildTrainSpec(st *cliState, opts *trainOptions) (*trainer.Spec, error) {
	cfg := st.cfg

	files := data.SplitFiles(opts.trainData)
	if len(files) == 0 {
		return nil, fmt.Errorf("train: missing --train_data")
	}
	format, err := data.DetectFormat(files)
	if err != nil {
		return nil, err
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
		return nil, err
	}

	spec := &trainer.Spec{
		TaskName:       opts.taskName,
		InitCheckpoint: opts.initCheckpoint,
		VocabFile:      opts.vocabFile,
		BertConfigFile: opts.bertConfigFile,
		TrainData:      files,
		DataFormat:     format,
		DevData:        opts.devData,
		LabelsFile:     opts.labels,
		LabelField:     labelField,
		TextFields:     textFields,
		Markers: data.SpanMarkers{
			ABegin: cfg.Markers.SpanABegin,
			AEnd:   cfg.Markers.SpanAEnd,
			BBegin: cfg.Markers.SpanBBegin,
			BEnd:   cfg.Markers.SpanBEnd,
		},
		ReplaceSpanA:     opts.replaceSpanA,
		ReplaceSpanB:     opts.replaceSpanB,
		MaxSeqLength:     opts.maxSeqLength,
		BatchSize:        opts.batchSize,
		NumTrainEpochs:   opts.numTrainEpochs,
		LearningRate:     opts.learningRate,
		WarmupProportion: opts.warmupProp,
		DoLowerCase:      opts.doLowerCase,
		ModelDir:         opts.modelDir,
	}
	if spec.MaxSeqLength <= 0 {
		spec.MaxSeqLength = cfg.Training.MaxSeqLength
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = cfg.Training.BatchSize
	}
	if spec.NumTrainEpochs <= 0 {
		spec.NumTrainEpochs = cfg.Training.NumTrainEpochs
	}
	if spec.LearningRate <= 0 {
		spec.LearningRate = cfg.Training.LearningRate
	}
	if spec.WarmupProportion < 0 {
		spec.WarmupProportion = cfg.Training.WarmupProportion
	}
	return spec, nil
}
