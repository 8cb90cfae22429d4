// Package result formats and parses the per-run result record, the one
// stable output format of a training run.
package result

import (
	"regexp"
	"strconv"
	"strings"
)

// Record is the tab-separated result emitted once per run. Accuracy is
// nil when the training log carried no final dev accuracy line; the
// record is still emitted with an empty accuracy field.
type Record struct {
	InitCheckpoint  string
	DataDir         string
	MaxSeqLength    int
	TrainBatchSize  int
	LearningRate    float64
	NumTrainEpochs  int
	OtherParameters string
	Accuracy        *float64
}

const recordTag = "TEST-RESULT"

// Line renders the record as a single tab-separated key/value line.
func (r *Record) Line() string {
	accuracy := ""
	if r.Accuracy != nil {
		accuracy = strconv.FormatFloat(*r.Accuracy, 'g', -1, 64)
	}
	fields := []string{
		recordTag,
		"init_checkpoint", r.InitCheckpoint,
		"data_dir", r.DataDir,
		"max_seq_length", strconv.Itoa(r.MaxSeqLength),
		"train_batch_size", strconv.Itoa(r.TrainBatchSize),
		"learning_rate", strconv.FormatFloat(r.LearningRate, 'g', -1, 64),
		"num_train_epochs", strconv.Itoa(r.NumTrainEpochs),
		"other_parameters", r.OtherParameters,
		"accuracy", accuracy,
	}
	return strings.Join(fields, "\t")
}

// AccuracyPrefix is the line the driver prints when the backend reports a
// dev-set accuracy.
const AccuracyPrefix = "Final dev accuracy:"

var finalAccuracyRE = regexp.MustCompile(`^Final dev accuracy:\s*([0-9]*\.?[0-9]+(?:[eE][+-]?[0-9]+)?)\s*$`)

// ParseFinalAccuracy scans a captured training log for the last line
// matching the final dev accuracy pattern. The second return value is
// false when no such line exists.
func ParseFinalAccuracy(log string) (float64, bool) {
	var (
		acc   float64
		found bool
	)
	for _, line := range strings.Split(log, "\n") {
		m := finalAccuracyRE.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		acc = v
		found = true
	}
	return acc, found
}
