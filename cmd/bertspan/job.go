package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/katnastou/bert-span-classifier/internal/checkpoint"
	"github.com/katnastou/bert-span-classifier/internal/config"
	"github.com/katnastou/bert-span-classifier/internal/data"
	"github.com/katnastou/bert-span-classifier/internal/result"
	"github.com/katnastou/bert-span-classifier/internal/store"
	"github.com/katnastou/bert-span-classifier/internal/trainer"
)

type jobOptions struct {
	taskName string
	modelDir string
}

func newJobCmd(st *cliState) *cobra.Command {
	var opts jobOptions

	cmd := &cobra.Command{
		Use:   "job <init_checkpoint> <data_dir> <max_seq_length> <batch_size> <learning_rate> <num_train_epochs> [other_parameters]",
		Short: "Run one fine-tuning job and emit its result record",
		Long: `Run one fine-tuning job end to end: resolve training data under the
data directory, infer case folding from the checkpoint path, drive the
training backend, and emit a single tab-separated TEST-RESULT record.`,
		Args:    cobra.ArbitraryArgs,
		PreRunE: loadConfigPreRun(st),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, st, &opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.taskName, "task_name", "", "task name (defaults to the data directory name)")
	cmd.Flags().StringVar(&opts.modelDir, "model_dir", "", "directory for trained model artifacts (defaults to models/<run-id>)")

	// other_parameters may itself look like a flag (e.g. "--amp"); stop
	// flag parsing at the first positional.
	cmd.Flags().SetInterspersed(false)

	return cmd
}

type jobArgs struct {
	initCheckpoint  string
	dataDir         string
	maxSeqLength    int
	batchSize       int
	learningRate    float64
	numTrainEpochs  int
	otherParameters string
}

func parseJobArgs(args []string) (*jobArgs, error) {
	if len(args) < 6 || len(args) > 7 {
		return nil, fmt.Errorf("job: expected 6 or 7 arguments (got %d)", len(args))
	}

	ja := &jobArgs{
		initCheckpoint: strings.TrimSpace(args[0]),
		dataDir:        strings.TrimSpace(args[1]),
	}
	if ja.initCheckpoint == "" {
		return nil, fmt.Errorf("job: empty init_checkpoint")
	}
	if ja.dataDir == "" {
		return nil, fmt.Errorf("job: empty data_dir")
	}

	var err error
	if ja.maxSeqLength, err = strconv.Atoi(args[2]); err != nil {
		return nil, fmt.Errorf("job: invalid max_seq_length %q", args[2])
	}
	if ja.batchSize, err = strconv.Atoi(args[3]); err != nil {
		return nil, fmt.Errorf("job: invalid batch_size %q", args[3])
	}
	if ja.learningRate, err = strconv.ParseFloat(args[4], 64); err != nil {
		return nil, fmt.Errorf("job: invalid learning_rate %q", args[4])
	}
	if ja.numTrainEpochs, err = strconv.Atoi(args[5]); err != nil {
		return nil, fmt.Errorf("job: invalid num_train_epochs %q", args[5])
	}
	if len(args) == 7 {
		ja.otherParameters = args[6]
	}
	return ja, nil
}

func runJob(cmd *cobra.Command, st *cliState, opts *jobOptions, args []string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("job: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("job: nil options")
	}

	ja, err := parseJobArgs(args)
	if err != nil {
		_ = cmd.Usage()
		return err
	}
	cfg := st.cfg

	runID, err := newRunID()
	if err != nil {
		return fmt.Errorf("job: generate run id: %w", err)
	}

	taskName := strings.TrimSpace(opts.taskName)
	if taskName == "" {
		taskName = filepath.Base(filepath.Clean(ja.dataDir))
	}
	modelDir := strings.TrimSpace(opts.modelDir)
	if modelDir == "" {
		modelDir = filepath.Join(cfg.Download.Dir, runID)
	}

	rec := &result.Record{
		InitCheckpoint:  ja.initCheckpoint,
		DataDir:         ja.dataDir,
		MaxSeqLength:    ja.maxSeqLength,
		TrainBatchSize:  ja.batchSize,
		LearningRate:    ja.learningRate,
		NumTrainEpochs:  ja.numTrainEpochs,
		OtherParameters: ja.otherParameters,
	}

	// Data-resolution and driver failures must not abort the reporting
	// step: the record goes out with an empty accuracy field and the
	// error still decides the exit status.
	outcome, runErr := executeJob(cmd, cfg, ja, taskName, modelDir)
	if runErr == nil && outcome != nil {
		rec.Accuracy = outcome.Accuracy
	}
	fmt.Fprintln(cmd.OutOrStdout(), rec.Line())

	if err := saveJobRun(cmd.Context(), st, runID, taskName, modelDir, rec); err != nil {
		if runErr != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return runErr
		}
		return err
	}
	return runErr
}

func executeJob(cmd *cobra.Command, cfg *config.Config, ja *jobArgs, taskName, modelDir string) (*trainer.Outcome, error) {
	trainFiles, format, err := data.ResolveTrainData(ja.dataDir)
	if err != nil {
		return nil, err
	}
	devData, err := data.ResolveDevData(ja.dataDir)
	if err != nil {
		return nil, err
	}
	textFields, err := data.ParseTextFields(cfg.Training.TextFields)
	if err != nil {
		return nil, err
	}

	// Vocabulary and model config live next to the checkpoint files.
	ckptDir := filepath.Dir(ja.initCheckpoint)

	spec := &trainer.Spec{
		TaskName:       taskName,
		InitCheckpoint: ja.initCheckpoint,
		VocabFile:      filepath.Join(ckptDir, "vocab.txt"),
		BertConfigFile: filepath.Join(ckptDir, "bert_config.json"),
		TrainData:      trainFiles,
		DataFormat:     format,
		DevData:        devData,
		LabelsFile:     filepath.Join(ja.dataDir, "labels.txt"),
		LabelField:     cfg.Training.LabelField,
		TextFields:     textFields,
		Markers: data.SpanMarkers{
			ABegin: cfg.Markers.SpanABegin,
			AEnd:   cfg.Markers.SpanAEnd,
			BBegin: cfg.Markers.SpanBBegin,
			BEnd:   cfg.Markers.SpanBEnd,
		},
		MaxSeqLength:     ja.maxSeqLength,
		BatchSize:        ja.batchSize,
		NumTrainEpochs:   ja.numTrainEpochs,
		LearningRate:     ja.learningRate,
		WarmupProportion: cfg.Training.WarmupProportion,
		DoLowerCase:      checkpoint.LowerCase(ja.initCheckpoint),
		ModelDir:         modelDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tr := trainer.New(newBackend(cfg), cmd.ErrOrStderr())
	// TODO: remove the partial model dir when the backend fails mid-run.
	return tr.Run(ctx, spec)
}

func saveJobRun(ctx context.Context, st *cliState, runID, taskName, modelDir string, rec *result.Record) error {
	if ctx == nil {
		ctx = context.Background()
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return fmt.Errorf("job: open store: %w", err)
	}
	defer stor.Close()

	var writer store.RunWriter = stor

	run := &store.RunRecord{
		ID:              runID,
		CreatedAt:       time.Now().UTC(),
		Task:            taskName,
		InitCheckpoint:  rec.InitCheckpoint,
		DataDir:         rec.DataDir,
		MaxSeqLength:    rec.MaxSeqLength,
		BatchSize:       rec.TrainBatchSize,
		LearningRate:    rec.LearningRate,
		NumTrainEpochs:  rec.NumTrainEpochs,
		OtherParameters: rec.OtherParameters,
		Accuracy:        rec.Accuracy,
		ModelDir:        modelDir,
	}
	if err := writer.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("job: save run: %w", err)
	}
	return nil
}

func newRunID() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("run_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
