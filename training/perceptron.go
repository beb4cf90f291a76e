package training

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/ahmedtd/perceptron/toolbox"
)

// PerceptronSession trains a single step-activated Unit with the perceptron
// delta rule.
type PerceptronSession struct {
	Data         [][]float32
	Labels       []float32
	Unit         toolbox.Unit
	LearningRate float32
	ItemCount    int

	// Epochs counts completed passes over Data.
	Epochs int
}

func NewPerceptronSession(data [][]float32, labels []float32, learningRate float32, r *rand.Rand) (*PerceptronSession, error) {
	inputSize, err := validateSession(data, len(labels), learningRate)
	if err != nil {
		return nil, err
	}

	return &PerceptronSession{
		Data:         data,
		Labels:       labels,
		Unit:         toolbox.RandomUnit(inputSize, toolbox.Step, r),
		LearningRate: learningRate,
		ItemCount:    len(data),
	}, nil
}

// Train makes opts.Epochs online passes over the data (one by default),
// applying w += rate*(t-y)*x and b += rate*(t-y) after every item.
func (s *PerceptronSession) Train(opts TrainOptions) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		misses := 0
		for k := 0; k < s.ItemCount; k++ {
			x := s.Data[k]
			y, err := s.Unit.Evaluate(x)
			if err != nil {
				return fmt.Errorf("while evaluating item %d: %w", k, err)
			}

			e := s.Labels[k] - y
			if e != 0 {
				misses++
			}

			// The step function has no usable derivative, so the update is
			// the raw error times the input.
			dJdw := make([]float32, len(x))
			for j := range x {
				dJdw[j] = -e * x[j]
			}
			if err := s.Unit.Descend(dJdw, -e, s.LearningRate); err != nil {
				return fmt.Errorf("while updating on item %d: %w", k, err)
			}
		}
		s.Epochs++

		if opts.LogEvery > 0 && s.Epochs%opts.LogEvery == 0 {
			log.Printf("epoch=%d misclassified=%d/%d", s.Epochs, misses, s.ItemCount)
		}
	}

	return nil
}

// Predict returns the step output, already 0 or 1.
func (s *PerceptronSession) Predict(x []float32) (float32, error) {
	return s.Unit.Evaluate(x)
}

// Test returns the share of data the current unit labels correctly.
func (s *PerceptronSession) Test(data [][]float32, labels []float32) (float64, error) {
	return accuracy(s.Predict, data, labels)
}

func (s *PerceptronSession) Export() toolbox.UnitParams {
	return s.Unit.Params()
}

// ImportPerceptron wraps stored parameters in a session with no data that is
// only good for Predict, Test and Export.
func ImportPerceptron(p toolbox.UnitParams) *PerceptronSession {
	return &PerceptronSession{
		Data:   [][]float32{},
		Labels: []float32{},
		Unit:   toolbox.UnitFromParams(p, toolbox.Step),
	}
}
