package trainer

import "fmt"

// CalcTrainSteps computes total and warmup optimizer steps from the
// example count: ceil(numExamples/batchSize) steps per epoch, with the
// first warmupProportion of all steps spent on learning-rate warmup.
func CalcTrainSteps(numExamples, batchSize, epochs int, warmupProportion float64) (total, warmup int, err error) {
	if numExamples <= 0 {
		return 0, 0, fmt.Errorf("trainer: no training examples")
	}
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("trainer: batch size must be > 0 (got %d)", batchSize)
	}
	if epochs <= 0 {
		return 0, 0, fmt.Errorf("trainer: num_train_epochs must be > 0 (got %d)", epochs)
	}
	if warmupProportion < 0 || warmupProportion >= 1 {
		return 0, 0, fmt.Errorf("trainer: warmup_proportion must be in [0,1) (got %v)", warmupProportion)
	}

	stepsPerEpoch := (numExamples + batchSize - 1) / batchSize
	total = stepsPerEpoch * epochs
	warmup = int(float64(total) * warmupProportion)
	return total, warmup, nil
}
