package toolbox

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/chewxy/math32"
)

// Evaluation is the input and output recorded by the most recent forward
// evaluation.  A nil *Evaluation means nothing has been evaluated since the
// parameters last changed.
type Evaluation struct {
	Inputs []float32
	Output float32
}

// Unit is a single weighted-sum-plus-activation node.
type Unit struct {
	Activation ActivationType

	W []float32 // Shape (InputSize)
	B float32

	Last *Evaluation
}

func NewUnit(w []float32, b float32, activation ActivationType) Unit {
	return Unit{
		Activation: activation,
		W:          w,
		B:          b,
	}
}

// RandomUnit draws the weights and bias uniformly from [0, 1).  inputSize
// must not be negative; RandomSLP and RandomMLP check this before calling.
func RandomUnit(inputSize int, activation ActivationType, r *rand.Rand) Unit {
	w := make([]float32, inputSize)
	for j := range w {
		w[j] = r.Float32()
	}
	return NewUnit(w, r.Float32(), activation)
}

// XavierUnit draws the weights uniformly from [-L, L] with
// L = sqrt(6/(inputSize+outputSize)) and zeroes the bias.
func XavierUnit(inputSize, outputSize int, activation ActivationType, r *rand.Rand) Unit {
	bound := math32.Sqrt(6 / float32(inputSize+outputSize))

	w := make([]float32, inputSize)
	for j := range w {
		w[j] = (r.Float32()*2 - 1) * bound
	}
	return NewUnit(w, 0, activation)
}

func (u *Unit) InputSize() int {
	return len(u.W)
}

// Evaluate computes activation(dot(x, W) + B) and records it in u.Last.
func (u *Unit) Evaluate(x []float32) (float32, error) {
	if len(x) != len(u.W) {
		return 0, fmt.Errorf("%w: unit has %d weights, got %d inputs", ErrDimensionMismatch, len(u.W), len(x))
	}

	z, err := Dot(x, u.W)
	if err != nil {
		return 0, err
	}
	a := u.Activation.Apply(z + u.B)

	u.Last = &Evaluation{
		Inputs: slices.Clone(x),
		Output: a,
	}
	return a, nil
}

// Output returns the cached output of the last evaluation.
func (u *Unit) Output() (float32, bool) {
	if u.Last == nil {
		return 0, false
	}
	return u.Last.Output, true
}

// Descend applies W -= rate*dJdw and B -= rate*dJdb in place.  The cached
// evaluation no longer matches the parameters and is dropped.
func (u *Unit) Descend(dJdw []float32, dJdb float32, rate float32) error {
	if len(dJdw) != len(u.W) {
		return fmt.Errorf("%w: unit has %d weights, got %d gradients", ErrDimensionMismatch, len(u.W), len(dJdw))
	}
	for j := range u.W {
		u.W[j] -= rate * dJdw[j]
	}
	u.B -= rate * dJdb
	u.Last = nil
	return nil
}

// Clone copies the parameters.  The cached evaluation is not carried over.
func (u *Unit) Clone() Unit {
	return NewUnit(slices.Clone(u.W), u.B, u.Activation)
}
