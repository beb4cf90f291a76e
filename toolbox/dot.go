package toolbox

import "fmt"

// Dot returns the sum of element-wise products of x and y.
func Dot(x []float32, y []float32) (float32, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: dot of length %d and %d", ErrDimensionMismatch, len(x), len(y))
	}
	var sum float32
	for i := 0; i < len(x); i++ {
		sum += x[i] * y[i]
	}
	return sum, nil
}
