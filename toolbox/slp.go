package toolbox

import (
	"fmt"
	"math/rand"
	"slices"
)

// SLP is a model with one hidden layer of units feeding a single output unit.
type SLP struct {
	NInputs int

	Hidden []Unit
	Output Unit

	Last *Evaluation
}

// SLPGradients holds dJ/dparam for every parameter of an SLP, in the same
// shape as the model.
type SLPGradients struct {
	OutputBias    float32
	OutputWeights []float32   // Shape (hiddenSize)
	HiddenBias    []float32   // Shape (hiddenSize)
	HiddenWeights [][]float32 // Shape (hiddenSize, inputSize)
}

func NewSLP(hidden []Unit, output Unit) (*SLP, error) {
	if len(hidden) == 0 {
		return nil, ErrEmptyLayer
	}

	inputSize := hidden[0].InputSize()
	for i := range hidden {
		if hidden[i].InputSize() != inputSize {
			return nil, fmt.Errorf("%w: hidden unit %d has %d weights, want %d", ErrInconsistentInputWidth, i, hidden[i].InputSize(), inputSize)
		}
	}

	if output.InputSize() != len(hidden) {
		return nil, fmt.Errorf("%w: output unit has %d weights, hidden layer has %d units", ErrOutputWidthMismatch, output.InputSize(), len(hidden))
	}

	return &SLP{
		NInputs: inputSize,
		Hidden:  hidden,
		Output:  output,
	}, nil
}

// RandomSLP builds an SLP whose every unit uses activation and draws its
// parameters with RandomUnit.
func RandomSLP(inputSize, hiddenSize int, activation ActivationType, r *rand.Rand) (*SLP, error) {
	if inputSize < 0 || hiddenSize < 0 {
		return nil, fmt.Errorf("%w: %d inputs, %d hidden units", ErrNegativeSize, inputSize, hiddenSize)
	}
	hidden := make([]Unit, hiddenSize)
	for i := range hidden {
		hidden[i] = RandomUnit(inputSize, activation, r)
	}
	output := RandomUnit(hiddenSize, activation, r)
	return NewSLP(hidden, output)
}

func NewSLPGradients(inputSize, hiddenSize int) *SLPGradients {
	g := &SLPGradients{
		OutputWeights: make([]float32, hiddenSize),
		HiddenBias:    make([]float32, hiddenSize),
		HiddenWeights: make([][]float32, hiddenSize),
	}
	for i := range g.HiddenWeights {
		g.HiddenWeights[i] = make([]float32, inputSize)
	}
	return g
}

// Forward evaluates every hidden unit on x, then the output unit on the
// hidden outputs.
func (s *SLP) Forward(x []float32) (float32, error) {
	if len(x) != s.NInputs {
		return 0, fmt.Errorf("%w: model has %d inputs, got %d", ErrDimensionMismatch, s.NInputs, len(x))
	}
	s.Last = nil

	a := make([]float32, len(s.Hidden))
	for i := range s.Hidden {
		out, err := s.Hidden[i].Evaluate(x)
		if err != nil {
			return 0, fmt.Errorf("while evaluating hidden unit %d: %w", i, err)
		}
		a[i] = out
	}

	y, err := s.Output.Evaluate(a)
	if err != nil {
		return 0, fmt.Errorf("while evaluating output unit: %w", err)
	}

	s.Last = &Evaluation{
		Inputs: slices.Clone(x),
		Output: y,
	}
	return y, nil
}

// Backward computes the squared-error gradients of every parameter for the
// most recent Forward against expected.  Parameters are left untouched.
//
// The hidden layer's local slope is always SigmoidDerivative, whatever
// activation the hidden units carry.
func (s *SLP) Backward(expected float32) (*SLPGradients, error) {
	if s.Last == nil || s.Output.Last == nil {
		return nil, ErrStalePropagation
	}
	for i := range s.Hidden {
		if s.Hidden[i].Last == nil {
			return nil, fmt.Errorf("%w: hidden unit %d", ErrStalePropagation, i)
		}
	}

	g := NewSLPGradients(s.NInputs, len(s.Hidden))
	x := s.Last.Inputs
	y := s.Last.Output

	outputDelta := SquaredErrorLossGradient(y, expected) * SigmoidDerivative(y)

	g.OutputBias = outputDelta
	for i := range s.Hidden {
		g.OutputWeights[i] = outputDelta * s.Hidden[i].Last.Output
	}

	for i := range s.Hidden {
		hiddenDelta := outputDelta * SigmoidDerivative(s.Hidden[i].Last.Output) * s.Output.W[i]
		g.HiddenBias[i] = hiddenDelta
		for j := range x {
			g.HiddenWeights[i][j] = hiddenDelta * x[j]
		}
	}

	return g, nil
}

// Descend applies param -= rate*gradient to every parameter.  Hidden-layer
// gradients are additionally scaled by hiddenFactor.
func (s *SLP) Descend(g *SLPGradients, rate, hiddenFactor float32) error {
	if len(g.HiddenWeights) != len(s.Hidden) || len(g.HiddenBias) != len(s.Hidden) {
		return fmt.Errorf("%w: gradients cover %d hidden units, model has %d", ErrDimensionMismatch, len(g.HiddenWeights), len(s.Hidden))
	}
	// All shapes are checked before any parameter changes.
	if len(g.OutputWeights) != s.Output.InputSize() {
		return fmt.Errorf("%w: %d output weight gradients, want %d", ErrDimensionMismatch, len(g.OutputWeights), s.Output.InputSize())
	}
	for i := range s.Hidden {
		if len(g.HiddenWeights[i]) != s.Hidden[i].InputSize() {
			return fmt.Errorf("%w: hidden unit %d has %d weight gradients, want %d", ErrDimensionMismatch, i, len(g.HiddenWeights[i]), s.Hidden[i].InputSize())
		}
	}

	if err := s.Output.Descend(g.OutputWeights, g.OutputBias, rate); err != nil {
		return fmt.Errorf("while updating output unit: %w", err)
	}
	for i := range s.Hidden {
		if err := s.Hidden[i].Descend(g.HiddenWeights[i], g.HiddenBias[i], rate*hiddenFactor); err != nil {
			return fmt.Errorf("while updating hidden unit %d: %w", i, err)
		}
	}

	s.Last = nil
	return nil
}
