package toolbox

import (
	"fmt"
	"math/rand"
	"slices"
)

// MultiEvaluation records the model inputs and every output unit's result
// from the most recent forward pass.
type MultiEvaluation struct {
	Inputs  []float32
	Outputs []float32
}

// MLP is a stack of one or more hidden layers feeding an output layer of one
// or more units.
type MLP struct {
	NInputs  int
	NOutputs int

	Hidden [][]Unit // Indexed [layer][unit]
	Output []Unit

	Last *MultiEvaluation
}

// MLPGradients mirrors the parameter shape of an MLP.
type MLPGradients struct {
	OutputBias    []float32     // Shape (nOutputs)
	OutputWeights [][]float32   // Shape (nOutputs, lastHiddenSize)
	HiddenBias    [][]float32   // Shape (nHidden, layerSize)
	HiddenWeights [][][]float32 // Shape (nHidden, layerSize, layerInputSize)
}

func NewMLP(hidden [][]Unit, output []Unit) (*MLP, error) {
	if len(hidden) == 0 {
		return nil, ErrNoHiddenLayers
	}

	for l := range hidden {
		if len(hidden[l]) == 0 {
			return nil, fmt.Errorf("%w: hidden layer %d", ErrEmptyLayer, l)
		}
		if l == 0 {
			inputSize := hidden[0][0].InputSize()
			for i := range hidden[0] {
				if hidden[0][i].InputSize() != inputSize {
					return nil, fmt.Errorf("%w: layer 0 unit %d has %d weights, unit 0 has %d", ErrInconsistentInputWidth, i, hidden[0][i].InputSize(), inputSize)
				}
			}
			continue
		}
		for i := range hidden[l] {
			if hidden[l][i].InputSize() != len(hidden[l-1]) {
				return nil, fmt.Errorf("%w: layer %d unit %d has %d weights, previous layer has %d units", ErrLayerWidthMismatch, l, i, hidden[l][i].InputSize(), len(hidden[l-1]))
			}
		}
	}

	if len(output) == 0 {
		return nil, fmt.Errorf("%w: output layer", ErrEmptyLayer)
	}
	lastSize := len(hidden[len(hidden)-1])
	for k := range output {
		if output[k].InputSize() != lastSize {
			return nil, fmt.Errorf("%w: output unit %d has %d weights, last hidden layer has %d units", ErrOutputWidthMismatch, k, output[k].InputSize(), lastSize)
		}
	}

	return &MLP{
		NInputs:  hidden[0][0].InputSize(),
		NOutputs: len(output),
		Hidden:   hidden,
		Output:   output,
	}, nil
}

// RandomMLP builds an MLP with hiddenDims[l] units in hidden layer l and
// outputSize output units, all drawn with RandomUnit.
func RandomMLP(inputSize, outputSize int, hiddenDims []int, hiddenActivation, outputActivation ActivationType, r *rand.Rand) (*MLP, error) {
	if len(hiddenDims) == 0 {
		return nil, ErrNoHiddenLayers
	}
	if inputSize < 0 || outputSize < 0 {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrNegativeSize, inputSize, outputSize)
	}
	for l, size := range hiddenDims {
		if size < 0 {
			return nil, fmt.Errorf("%w: hidden layer %d has size %d", ErrNegativeSize, l, size)
		}
	}

	hidden := make([][]Unit, len(hiddenDims))
	layerInputSize := inputSize
	for l, size := range hiddenDims {
		hidden[l] = make([]Unit, size)
		for i := range hidden[l] {
			hidden[l][i] = RandomUnit(layerInputSize, hiddenActivation, r)
		}
		layerInputSize = size
	}

	output := make([]Unit, outputSize)
	for k := range output {
		output[k] = RandomUnit(layerInputSize, outputActivation, r)
	}

	return NewMLP(hidden, output)
}

func (m *MLP) NHidden() int {
	return len(m.Hidden)
}

// NewGradients returns an all-zero gradient bundle shaped like m.
func (m *MLP) NewGradients() *MLPGradients {
	g := &MLPGradients{
		OutputBias:    make([]float32, len(m.Output)),
		OutputWeights: make([][]float32, len(m.Output)),
		HiddenBias:    make([][]float32, len(m.Hidden)),
		HiddenWeights: make([][][]float32, len(m.Hidden)),
	}
	for k := range m.Output {
		g.OutputWeights[k] = make([]float32, m.Output[k].InputSize())
	}
	for l := range m.Hidden {
		g.HiddenBias[l] = make([]float32, len(m.Hidden[l]))
		g.HiddenWeights[l] = make([][]float32, len(m.Hidden[l]))
		for i := range m.Hidden[l] {
			g.HiddenWeights[l][i] = make([]float32, m.Hidden[l][i].InputSize())
		}
	}
	return g
}

// Forward evaluates the model layer by layer.  Each layer sees the previous
// layer's outputs (layer 0 sees x).
func (m *MLP) Forward(x []float32) ([]float32, error) {
	if len(x) != m.NInputs {
		return nil, fmt.Errorf("%w: model has %d inputs, got %d", ErrDimensionMismatch, m.NInputs, len(x))
	}
	m.Last = nil

	a0 := x
	for l := range m.Hidden {
		a1, err := evaluateLayer(m.Hidden[l], a0)
		if err != nil {
			return nil, fmt.Errorf("while evaluating hidden layer %d: %w", l, err)
		}
		// This layer's output becomes the input for the next layer.
		a0 = a1
	}

	y, err := evaluateLayer(m.Output, a0)
	if err != nil {
		return nil, fmt.Errorf("while evaluating output layer: %w", err)
	}

	m.Last = &MultiEvaluation{
		Inputs:  slices.Clone(x),
		Outputs: y,
	}
	return y, nil
}

func evaluateLayer(layer []Unit, x []float32) ([]float32, error) {
	a := make([]float32, len(layer))
	for i := range layer {
		out, err := layer[i].Evaluate(x)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		a[i] = out
	}
	return a, nil
}

// Backward computes the squared-error gradients of every parameter for the
// most recent Forward against expected, walking from the output layer back
// to hidden layer 0.  Each unit's local slope comes from its own activation.
// Parameters are left untouched.
func (m *MLP) Backward(expected []float32) (*MLPGradients, error) {
	if len(expected) != m.NOutputs {
		return nil, fmt.Errorf("%w: model has %d outputs, got %d expected values", ErrDimensionMismatch, m.NOutputs, len(expected))
	}
	if m.Last == nil {
		return nil, ErrStalePropagation
	}
	for k := range m.Output {
		if m.Output[k].Last == nil {
			return nil, fmt.Errorf("%w: output unit %d", ErrStalePropagation, k)
		}
	}
	for l := range m.Hidden {
		for i := range m.Hidden[l] {
			if m.Hidden[l][i].Last == nil {
				return nil, fmt.Errorf("%w: layer %d unit %d", ErrStalePropagation, l, i)
			}
		}
	}

	g := m.NewGradients()

	// delta[k] is dJ/dz for unit k of the layer currently being processed.
	delta := make([]float32, len(m.Output))
	for k := range m.Output {
		u := &m.Output[k]
		y := u.Last.Output
		delta[k] = SquaredErrorLossGradient(y, expected[k]) * u.Activation.Derivative(y)

		g.OutputBias[k] = delta[k]
		for j, in := range u.Last.Inputs {
			g.OutputWeights[k][j] = delta[k] * in
		}
	}

	next := m.Output
	for l := len(m.Hidden) - 1; l >= 0; l-- {
		layer := m.Hidden[l]
		layerDelta := make([]float32, len(layer))
		for i := range layer {
			var sum float32
			for k := range next {
				sum += delta[k] * next[k].W[i]
			}
			y := layer[i].Last.Output
			layerDelta[i] = sum * layer[i].Activation.Derivative(y)

			g.HiddenBias[l][i] = layerDelta[i]
			for j, in := range layer[i].Last.Inputs {
				g.HiddenWeights[l][i][j] = layerDelta[i] * in
			}
		}
		delta = layerDelta
		next = layer
	}

	return g, nil
}

// Descend applies param -= rate*gradient to every parameter.
func (m *MLP) Descend(g *MLPGradients, rate float32) error {
	if err := m.checkGradientShape(g); err != nil {
		return err
	}

	for k := range m.Output {
		if err := m.Output[k].Descend(g.OutputWeights[k], g.OutputBias[k], rate); err != nil {
			return fmt.Errorf("while updating output unit %d: %w", k, err)
		}
	}
	for l := range m.Hidden {
		for i := range m.Hidden[l] {
			if err := m.Hidden[l][i].Descend(g.HiddenWeights[l][i], g.HiddenBias[l][i], rate); err != nil {
				return fmt.Errorf("while updating layer %d unit %d: %w", l, i, err)
			}
		}
	}

	m.Last = nil
	return nil
}

func (m *MLP) checkGradientShape(g *MLPGradients) error {
	if len(g.OutputBias) != len(m.Output) || len(g.OutputWeights) != len(m.Output) {
		return fmt.Errorf("%w: gradients cover %d output units, model has %d", ErrDimensionMismatch, len(g.OutputWeights), len(m.Output))
	}
	for k := range m.Output {
		if len(g.OutputWeights[k]) != m.Output[k].InputSize() {
			return fmt.Errorf("%w: output unit %d has %d weight gradients, want %d", ErrDimensionMismatch, k, len(g.OutputWeights[k]), m.Output[k].InputSize())
		}
	}
	if len(g.HiddenBias) != len(m.Hidden) || len(g.HiddenWeights) != len(m.Hidden) {
		return fmt.Errorf("%w: gradients cover %d hidden layers, model has %d", ErrDimensionMismatch, len(g.HiddenWeights), len(m.Hidden))
	}
	for l := range m.Hidden {
		if len(g.HiddenBias[l]) != len(m.Hidden[l]) || len(g.HiddenWeights[l]) != len(m.Hidden[l]) {
			return fmt.Errorf("%w: gradients cover %d units of layer %d, model has %d", ErrDimensionMismatch, len(g.HiddenWeights[l]), l, len(m.Hidden[l]))
		}
		for i := range m.Hidden[l] {
			if len(g.HiddenWeights[l][i]) != m.Hidden[l][i].InputSize() {
				return fmt.Errorf("%w: layer %d unit %d has %d weight gradients, want %d", ErrDimensionMismatch, l, i, len(g.HiddenWeights[l][i]), m.Hidden[l][i].InputSize())
			}
		}
	}
	return nil
}
