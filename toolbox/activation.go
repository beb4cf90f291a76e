package toolbox

import (
	"fmt"

	"github.com/chewxy/math32"
)

type ActivationType int

const (
	Step ActivationType = iota
	Sigmoid
	ReLU
	Linear
)

func (a ActivationType) String() string {
	switch a {
	case Step:
		return "step"
	case Sigmoid:
		return "sigmoid"
	case ReLU:
		return "relu"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("ActivationType(%d)", int(a))
	}
}

// ParseActivation maps a flag value back to its ActivationType.
func ParseActivation(name string) (ActivationType, error) {
	for _, a := range []ActivationType{Step, Sigmoid, ReLU, Linear} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown activation %q", name)
}

// Apply evaluates the activation on the linear output z.
func (a ActivationType) Apply(z float32) float32 {
	switch a {
	case Step:
		return StepActivation(z)
	case Sigmoid:
		return SigmoidActivation(z)
	case ReLU:
		return ReLUActivation(z)
	case Linear:
		return z
	default:
		panic("unhandled activation function")
	}
}

// Derivative returns the slope of the activation given its output y (not its
// input).  Step is treated as flat everywhere.
func (a ActivationType) Derivative(y float32) float32 {
	switch a {
	case Step:
		return 0
	case Sigmoid:
		return SigmoidDerivative(y)
	case ReLU:
		return ReLUDerivative(y)
	case Linear:
		return 1
	default:
		panic("unhandled activation function")
	}
}

func StepActivation(z float32) float32 {
	if z > 0 {
		return 1
	}
	return 0
}

func SigmoidActivation(z float32) float32 {
	return 1 / (1 + math32.Exp(-z))
}

// SigmoidDerivative takes y = sigmoid(z).
func SigmoidDerivative(y float32) float32 {
	return y * (1 - y)
}

func ReLUActivation(z float32) float32 {
	return math32.Max(0, z)
}

// ReLUDerivative takes y = relu(z).
func ReLUDerivative(y float32) float32 {
	if y > 0 {
		return 1
	}
	return 0
}
