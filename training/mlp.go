package training

import (
	"fmt"
	"log"
	"math/rand"
	"slices"
	"time"

	"github.com/ahmedtd/perceptron/toolbox"
)

// MLPSession trains a sigmoid MLP with one or more outputs by online
// gradient descent on summed squared error.
type MLPSession struct {
	Data         [][]float32
	Targets      [][]float32 // Shape (ItemCount, Model.NOutputs)
	Model        *toolbox.MLP
	LearningRate float32
	ItemCount    int

	// Epochs counts completed passes over Data.
	Epochs int

	Timings Timings
}

func NewMLPSession(data, targets [][]float32, hiddenDims []int, learningRate float32, r *rand.Rand) (*MLPSession, error) {
	inputSize, err := validateSession(data, len(targets), learningRate)
	if err != nil {
		return nil, err
	}
	outputSize := len(targets[0])
	for k := range targets {
		if len(targets[k]) != outputSize {
			return nil, fmt.Errorf("%w: target %d has %d values, target 0 has %d", toolbox.ErrRaggedDataset, k, len(targets[k]), outputSize)
		}
	}

	model, err := toolbox.RandomMLP(inputSize, outputSize, hiddenDims, toolbox.Sigmoid, toolbox.Sigmoid, r)
	if err != nil {
		return nil, fmt.Errorf("while building model: %w", err)
	}

	return &MLPSession{
		Data:         data,
		Targets:      targets,
		Model:        model,
		LearningRate: learningRate,
		ItemCount:    len(data),
	}, nil
}

// TargetsFromLabels turns scalar labels into single-output targets.
func TargetsFromLabels(labels []float32) [][]float32 {
	targets := make([][]float32, len(labels))
	for k, l := range labels {
		targets[k] = []float32{l}
	}
	return targets
}

// Train runs opts.Epochs in-order passes, updating after every item.
func (s *MLPSession) Train(opts TrainOptions) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { s.Timings.Overall += time.Since(start) }()

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		var loss float32
		for k := 0; k < s.ItemCount; k++ {
			forwardStart := time.Now()
			y, err := s.Model.Forward(s.Data[k])
			if err != nil {
				return fmt.Errorf("while forwarding item %d: %w", k, err)
			}
			s.Timings.Forward += time.Since(forwardStart)

			itemLoss, err := toolbox.SumSquaredErrorLoss(y, s.Targets[k])
			if err != nil {
				return fmt.Errorf("while scoring item %d: %w", k, err)
			}
			loss += itemLoss

			backpropStart := time.Now()
			g, err := s.Model.Backward(s.Targets[k])
			if err != nil {
				return fmt.Errorf("while backpropagating item %d: %w", k, err)
			}
			s.Timings.Backpropagation += time.Since(backpropStart)

			weightUpdateStart := time.Now()
			if err := s.Model.Descend(g, s.LearningRate); err != nil {
				return fmt.Errorf("while updating on item %d: %w", k, err)
			}
			s.Timings.WeightUpdate += time.Since(weightUpdateStart)
		}
		s.Epochs++

		if opts.LogEvery > 0 && s.Epochs%opts.LogEvery == 0 {
			log.Printf("epoch=%d loss=%f", s.Epochs, loss/float32(s.ItemCount))
		}
	}

	return nil
}

// PredictAll thresholds every output at 0.5.
func (s *MLPSession) PredictAll(x []float32) ([]float32, error) {
	y, err := s.Model.Forward(x)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(y)
	for i := range out {
		out[i] = threshold(out[i])
	}
	return out, nil
}

// Predict returns a single label: the thresholded output for a one-output
// model, otherwise the index of the largest output.
func (s *MLPSession) Predict(x []float32) (float32, error) {
	y, err := s.Model.Forward(x)
	if err != nil {
		return 0, err
	}
	if len(y) == 1 {
		return threshold(y[0]), nil
	}
	best := 0
	for i := range y {
		if y[i] > y[best] {
			best = i
		}
	}
	return float32(best), nil
}

func (s *MLPSession) Test(data [][]float32, labels []float32) (float64, error) {
	return accuracy(s.Predict, data, labels)
}

func (s *MLPSession) Export() toolbox.MLPParams {
	return s.Model.Params()
}

// ImportMLP wraps stored parameters in a session with no data that is only
// good for Predict, Test and Export.
func ImportMLP(p toolbox.MLPParams) (*MLPSession, error) {
	model, err := toolbox.MLPFromParams(p, toolbox.Sigmoid, toolbox.Sigmoid)
	if err != nil {
		return nil, fmt.Errorf("while rebuilding model: %w", err)
	}
	return &MLPSession{
		Data:    [][]float32{},
		Targets: [][]float32{},
		Model:   model,
	}, nil
}
