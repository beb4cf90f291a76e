package training

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/ahmedtd/perceptron/toolbox"
)

// SLPSession trains a sigmoid SLP by online gradient descent on squared
// error.
type SLPSession struct {
	Data         [][]float32
	Labels       []float32
	Model        *toolbox.SLP
	LearningRate float32
	ItemCount    int

	// Epochs counts completed passes over Data.
	Epochs int

	Timings Timings
}

func NewSLPSession(data [][]float32, labels []float32, hiddenSize int, learningRate float32, r *rand.Rand) (*SLPSession, error) {
	inputSize, err := validateSession(data, len(labels), learningRate)
	if err != nil {
		return nil, err
	}

	model, err := toolbox.RandomSLP(inputSize, hiddenSize, toolbox.Sigmoid, r)
	if err != nil {
		return nil, fmt.Errorf("while building model: %w", err)
	}

	return &SLPSession{
		Data:         data,
		Labels:       labels,
		Model:        model,
		LearningRate: learningRate,
		ItemCount:    len(data),
	}, nil
}

// Train runs opts.Epochs passes over the data in order.  Each item is
// forwarded, backpropagated and immediately applied, so the next item already
// sees the updated weights.
func (s *SLPSession) Train(opts TrainOptions) error {
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
			loss += toolbox.SquaredErrorLoss(y, s.Labels[k])

			backpropStart := time.Now()
			g, err := s.Model.Backward(s.Labels[k])
			if err != nil {
				return fmt.Errorf("while backpropagating item %d: %w", k, err)
			}
			s.Timings.Backpropagation += time.Since(backpropStart)

			weightUpdateStart := time.Now()
			if err := s.Model.Descend(g, s.LearningRate, opts.HiddenFactor); err != nil {
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

// Predict thresholds the sigmoid output at 0.5.
func (s *SLPSession) Predict(x []float32) (float32, error) {
	y, err := s.Model.Forward(x)
	if err != nil {
		return 0, err
	}
	return threshold(y), nil
}

func (s *SLPSession) Test(data [][]float32, labels []float32) (float64, error) {
	return accuracy(s.Predict, data, labels)
}

func (s *SLPSession) Export() toolbox.SLPParams {
	return s.Model.Params()
}

// ImportSLP wraps stored parameters in a session with no data that is only
// good for Predict, Test and Export.
func ImportSLP(p toolbox.SLPParams) (*SLPSession, error) {
	model, err := toolbox.SLPFromParams(p, toolbox.Sigmoid)
	if err != nil {
		return nil, fmt.Errorf("while rebuilding model: %w", err)
	}
	return &SLPSession{
		Data:   [][]float32{},
		Labels: []float32{},
		Model:  model,
	}, nil
}
