// Package training runs online supervised training over the toolbox models:
// every example is forwarded, backpropagated and applied to the parameters
// before the next one is looked at, in the order given.
package training

import (
	"fmt"
	"time"

	"github.com/ahmedtd/perceptron/toolbox"
)

// TrainOptions configures Train.  Zero values select the defaults.
type TrainOptions struct {
	// Epochs is the number of passes over the data.  Defaults to 1.
	Epochs int

	// HiddenFactor scales hidden-layer gradients to counteract vanishing
	// gradients from sigmoid saturation.  The zero value means 1; negative
	// values are rejected.  Ignored by the MLP session.
	HiddenFactor float32

	// LogEvery logs the mean loss every LogEvery epochs.  0 disables logging.
	LogEvery int
}

func (o TrainOptions) withDefaults() (TrainOptions, error) {
	if o.Epochs <= 0 {
		o.Epochs = 1
	}
	if o.HiddenFactor == 0 {
		o.HiddenFactor = 1
	}
	if !(o.HiddenFactor > 0) {
		return o, fmt.Errorf("%w: got %v", toolbox.ErrHiddenFactorOutOfRange, o.HiddenFactor)
	}
	return o, nil
}

type Timings struct {
	Overall         time.Duration
	Forward         time.Duration
	Backpropagation time.Duration
	WeightUpdate    time.Duration
}

func (t *Timings) Reset() {
	t.Overall = 0 * time.Second
	t.Forward = 0 * time.Second
	t.Backpropagation = 0 * time.Second
	t.WeightUpdate = 0 * time.Second
}

// validateSession checks the invariants shared by every session type and
// returns the input width.
func validateSession(data [][]float32, labelCount int, learningRate float32) (int, error) {
	if len(data) == 0 {
		return 0, toolbox.ErrEmptyDataset
	}
	if len(data) != labelCount {
		return 0, fmt.Errorf("%w: %d items, %d labels", toolbox.ErrLabelMismatch, len(data), labelCount)
	}
	if !(learningRate > 0 && learningRate <= 1) {
		return 0, fmt.Errorf("%w: got %v", toolbox.ErrLearningRateOutOfRange, learningRate)
	}

	inputSize := len(data[0])
	for k := range data {
		if len(data[k]) != inputSize {
			return 0, fmt.Errorf("%w: item %d has %d values, item 0 has %d", toolbox.ErrRaggedDataset, k, len(data[k]), inputSize)
		}
	}
	return inputSize, nil
}

// accuracy returns the share of items for which predict matches the label.
func accuracy(predict func([]float32) (float32, error), data [][]float32, labels []float32) (float64, error) {
	if len(data) != len(labels) {
		return 0, fmt.Errorf("%w: %d items, %d labels", toolbox.ErrLabelMismatch, len(data), len(labels))
	}
	if len(data) == 0 {
		return 0, toolbox.ErrEmptyDataset
	}

	correct := 0
	for k := range data {
		pred, err := predict(data[k])
		if err != nil {
			return 0, fmt.Errorf("while predicting item %d: %w", k, err)
		}
		if pred == labels[k] {
			correct++
		}
	}
	return float64(correct) / float64(len(data)), nil
}

func threshold(y float32) float32 {
	if y < 0.5 {
		return 0
	}
	return 1
}
