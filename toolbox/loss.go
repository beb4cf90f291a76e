package toolbox

import "fmt"

// SquaredErrorLoss is (expected - output)^2.
func SquaredErrorLoss(output, expected float32) float32 {
	diff := expected - output
	return diff * diff
}

// SquaredErrorLossGradient is the derivative of SquaredErrorLoss with respect
// to output.
func SquaredErrorLossGradient(output, expected float32) float32 {
	return 2 * (output - expected)
}

// SumSquaredErrorLoss sums SquaredErrorLoss over every output of a
// multi-output model.
func SumSquaredErrorLoss(outputs, expected []float32) (float32, error) {
	if len(outputs) != len(expected) {
		return 0, fmt.Errorf("%w: %d outputs, %d expected values", ErrDimensionMismatch, len(outputs), len(expected))
	}

	loss := float32(0)
	for i := range outputs {
		loss += SquaredErrorLoss(outputs[i], expected[i])
	}
	return loss, nil
}
