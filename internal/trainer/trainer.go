// Package trainer drives one fine-tuning run: it validates inputs,
// counts examples, computes optimizer steps, marshals arguments to the
// external training backend, and extracts the final dev accuracy from
// the captured log.
package trainer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/katnastou/bert-span-classifier/internal/data"
	"github.com/katnastou/bert-span-classifier/internal/result"
)

type Trainer struct {
	backend Backend
	logw    io.Writer

	now func() time.Time
}

// New creates a Trainer writing progress and backend output to logw.
func New(backend Backend, logw io.Writer) *Trainer {
	if logw == nil {
		logw = io.Discard
	}
	return &Trainer{backend: backend, logw: logw, now: time.Now}
}

// Run executes one fine-tuning run. Data and model errors are fatal; a
// missing accuracy line in the backend log is not (Outcome.Accuracy is
// nil in that case).
func (t *Trainer) Run(ctx context.Context, spec *Spec) (*Outcome, error) {
	if t == nil || t.backend == nil {
		return nil, errors.New("trainer: nil backend")
	}
	if spec == nil {
		return nil, errors.New("trainer: nil spec")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	labels, err := data.ReadLabels(spec.LabelsFile)
	if err != nil {
		return nil, err
	}

	numExamples, err := t.countExamples(spec)
	if err != nil {
		return nil, err
	}

	totalSteps, warmupSteps, err := CalcTrainSteps(numExamples, spec.BatchSize, spec.NumTrainEpochs, spec.WarmupProportion)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(t.logw, "examples=%d labels=%d total_steps=%d warmup_steps=%d\n",
		numExamples, len(labels), totalSteps, warmupSteps)

	args := driverArgs(spec, len(labels), totalSteps, warmupSteps)

	var capture bytes.Buffer
	out := io.MultiWriter(t.logw, &capture)

	start := t.now()
	err = t.backend.Train(ctx, args, out)
	fmt.Fprintf(t.logw, "train completed in %.1f sec\n", t.now().Sub(start).Seconds())
	if err != nil {
		return nil, err
	}

	meta := ModelMeta{
		TaskName:     spec.TaskName,
		DoLowerCase:  spec.DoLowerCase,
		MaxSeqLength: spec.MaxSeqLength,
		ReplaceSpanA: spec.ReplaceSpanA,
		ReplaceSpanB: spec.ReplaceSpanB,
	}
	if err := WriteModelDir(spec.ModelDir, meta, labels, spec.VocabFile); err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Labels:      labels,
		NumExamples: numExamples,
		TotalSteps:  totalSteps,
		WarmupSteps: warmupSteps,
		Log:         capture.String(),
	}
	if acc, ok := result.ParseFinalAccuracy(outcome.Log); ok {
		outcome.Accuracy = &acc
	}
	return outcome, nil
}

// Predict evaluates a trained model on a test set, reusing the
// preprocessing settings saved in the model directory.
func (t *Trainer) Predict(ctx context.Context, modelDir, testData string, batchSize int, labelField int, textFields []int) (string, error) {
	if t == nil || t.backend == nil {
		return "", errors.New("trainer: nil backend")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	meta, _, err := LoadModelDir(modelDir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(testData); err != nil {
		return "", fmt.Errorf("trainer: test data: %w", err)
	}

	args := []string{
		"--model_dir", modelDir,
		"--vocab_file", ModelVocabPath(modelDir),
		"--labels", labelsPath(modelDir),
		"--test_data", testData,
		"--max_seq_length", strconv.Itoa(meta.MaxSeqLength),
		"--batch_size", strconv.Itoa(batchSize),
		"--label_field", strconv.Itoa(labelField),
		"--text_fields", joinInts(textFields),
	}
	if meta.DoLowerCase {
		args = append(args, "--do_lower_case")
	}

	var capture bytes.Buffer
	out := io.MultiWriter(t.logw, &capture)

	start := t.now()
	err = t.backend.Predict(ctx, args, out)
	fmt.Fprintf(t.logw, "predict completed in %.1f sec\n", t.now().Sub(start).Seconds())
	if err != nil {
		return "", err
	}
	return capture.String(), nil
}

func (t *Trainer) countExamples(spec *Spec) (int, error) {
	switch spec.DataFormat {
	case data.FormatTSV:
		fieldSpec := data.FieldSpec{LabelField: spec.LabelField, TextFields: spec.TextFields}
		rep := data.Replacements{SpanA: spec.ReplaceSpanA, SpanB: spec.ReplaceSpanB}
		return data.CountTSVExamples(spec.TrainData, fieldSpec, spec.Markers, rep)
	case data.FormatTFRecord:
		return data.CountTFRecordExamples(spec.TrainData)
	default:
		return 0, fmt.Errorf("trainer: unknown data format %q", spec.DataFormat)
	}
}

func validateSpec(spec *Spec) error {
	for _, p := range []struct {
		name, path string
	}{
		{"init_checkpoint", checkpointIndexPath(spec.InitCheckpoint)},
		{"vocab_file", spec.VocabFile},
		{"bert_config_file", spec.BertConfigFile},
		{"labels", spec.LabelsFile},
	} {
		if strings.TrimSpace(p.path) == "" {
			return fmt.Errorf("trainer: missing %s", p.name)
		}
		if _, err := os.Stat(p.path); err != nil {
			return fmt.Errorf("trainer: %s: %w", p.name, err)
		}
	}
	if len(spec.TrainData) == 0 {
		return errors.New("trainer: missing train_data")
	}
	for _, f := range spec.TrainData {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("trainer: train_data: %w", err)
		}
	}
	if spec.DevData != "" {
		if _, err := os.Stat(spec.DevData); err != nil {
			return fmt.Errorf("trainer: dev_data: %w", err)
		}
	}
	if strings.TrimSpace(spec.ModelDir) == "" {
		return errors.New("trainer: missing model_dir")
	}
	if spec.MaxSeqLength <= 0 {
		return fmt.Errorf("trainer: max_seq_length must be > 0 (got %d)", spec.MaxSeqLength)
	}
	if spec.LearningRate <= 0 {
		return fmt.Errorf("trainer: learning_rate must be > 0 (got %v)", spec.LearningRate)
	}
	return nil
}

// checkpointIndexPath maps a TensorFlow checkpoint prefix to a file that
// actually exists on disk. A prefix like bert_model.ckpt names the
// sibling bert_model.ckpt.index file.
func checkpointIndexPath(ckpt string) string {
	if ckpt == "" {
		return ""
	}
	if _, err := os.Stat(ckpt); err == nil {
		return ckpt
	}
	return ckpt + ".index"
}

func driverArgs(spec *Spec, numLabels, totalSteps, warmupSteps int) []string {
	args := []string{
		"--task_name", spec.TaskName,
		"--init_checkpoint", spec.InitCheckpoint,
		"--vocab_file", spec.VocabFile,
		"--bert_config_file", spec.BertConfigFile,
		"--train_data", data.JoinFiles(spec.TrainData),
		"--labels", spec.LabelsFile,
		"--label_field", strconv.Itoa(spec.LabelField),
		"--text_fields", joinInts(spec.TextFields),
		"--max_seq_length", strconv.Itoa(spec.MaxSeqLength),
		"--batch_size", strconv.Itoa(spec.BatchSize),
		"--num_train_epochs", strconv.Itoa(spec.NumTrainEpochs),
		"--learning_rate", strconv.FormatFloat(spec.LearningRate, 'g', -1, 64),
		"--num_labels", strconv.Itoa(numLabels),
		"--total_steps", strconv.Itoa(totalSteps),
		"--warmup_steps", strconv.Itoa(warmupSteps),
		"--model_dir", spec.ModelDir,
	}
	if spec.DevData != "" {
		args = append(args, "--dev_data", spec.DevData)
	}
	if spec.ReplaceSpanA != "" {
		args = append(args, "--replace_span_A", spec.ReplaceSpanA)
	}
	if spec.ReplaceSpanB != "" {
		args = append(args, "--replace_span_B", spec.ReplaceSpanB)
	}
	if spec.DoLowerCase {
		args = append(args, "--do_lower_case")
	}
	return args
}

func joinInts(xs []int) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, strconv.Itoa(x))
	}
	return strings.Join(parts, ",")
}
