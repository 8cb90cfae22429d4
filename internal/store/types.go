package store

import (
	"context"
	"time"
)

// RunWriter defines persistence for training-run results.
type RunWriter interface {
	SaveRun(ctx context.Context, run *RunRecord) error
}

// RunReader defines read access to stored runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	BestRuns(ctx context.Context, task string, limit int) ([]*RunRecord, error)
}

// Store defines persistence for run records.
type Store interface {
	RunWriter
	RunReader
	Close() error
}

// RunRecord stores one training run: the hyperparameters used and the
// dev-set accuracy. Accuracy is nil when the run's log carried no final
// dev accuracy line.
type RunRecord struct {
	ID              string
	CreatedAt       time.Time
	Task            string
	InitCheckpoint  string
	DataDir         string
	MaxSeqLength    int
	BatchSize       int
	LearningRate    float64
	NumTrainEpochs  int
	OtherParameters string
	Accuracy        *float64
	ModelDir        string
}

// RunFilter filters run listings.
type RunFilter struct {
	Task       string
	Checkpoint string
	Since      time.Time
	Limit      int
}
