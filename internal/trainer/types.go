package trainer

import (
	"github.com/katnastou/bert-span-classifier/internal/data"
)

// Spec is everything one fine-tuning run needs: the pretrained snapshot,
// the tagged data, and the hyperparameters.
type Spec struct {
	TaskName string

	InitCheckpoint string
	VocabFile      string
	BertConfigFile string

	TrainData  []string
	DataFormat data.Format
	DevData    string

	LabelsFile string
	LabelField int
	TextFields []int

	Markers      data.SpanMarkers
	ReplaceSpanA string
	ReplaceSpanB string

	MaxSeqLength     int
	BatchSize        int
	NumTrainEpochs   int
	LearningRate     float64
	WarmupProportion float64
	DoLowerCase      bool

	ModelDir string
}

// Outcome reports what a run produced. Accuracy is nil when the backend
// log carried no final dev accuracy line.
type Outcome struct {
	Labels      []string
	NumExamples int
	TotalSteps  int
	WarmupSteps int
	Accuracy    *float64
	Log         string
}
