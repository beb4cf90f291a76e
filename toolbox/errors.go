package toolbox

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when two vectors that must agree in
	// length do not (weights vs inputs, dot product operands, gradients).
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrStructuralInvalidity is returned when a model cannot be built from
	// the given layers.
	ErrStructuralInvalidity = errors.New("invalid model structure")

	ErrEmptyLayer             = fmt.Errorf("%w: layer has no units", ErrStructuralInvalidity)
	ErrInconsistentInputWidth = fmt.Errorf("%w: hidden units disagree on input width", ErrStructuralInvalidity)
	ErrOutputWidthMismatch    = fmt.Errorf("%w: output layer width does not match last hidden layer", ErrStructuralInvalidity)
	ErrNoHiddenLayers         = fmt.Errorf("%w: no hidden layers", ErrStructuralInvalidity)
	ErrLayerWidthMismatch     = fmt.Errorf("%w: layer inputs do not match previous layer outputs", ErrStructuralInvalidity)
	ErrNegativeSize           = fmt.Errorf("%w: negative layer or input size", ErrStructuralInvalidity)

	// ErrDatasetInvalidity is returned for unusable training or test data.
	ErrDatasetInvalidity = errors.New("invalid dataset")

	ErrEmptyDataset  = fmt.Errorf("%w: no items", ErrDatasetInvalidity)
	ErrLabelMismatch = fmt.Errorf("%w: data and labels differ in length", ErrDatasetInvalidity)
	ErrRaggedDataset = fmt.Errorf("%w: rows differ in width", ErrDatasetInvalidity)

	// ErrParameterOutOfRange is returned for hyperparameters outside their
	// valid range.
	ErrParameterOutOfRange = errors.New("parameter out of range")

	ErrLearningRateOutOfRange = fmt.Errorf("%w: learning rate must be in (0, 1]", ErrParameterOutOfRange)
	ErrHiddenFactorOutOfRange = fmt.Errorf("%w: hidden factor must be positive", ErrParameterOutOfRange)

	// ErrStalePropagation is returned when backpropagation is requested
	// without a forward pass since the last parameter change.
	ErrStalePropagation = errors.New("backward pass requires a preceding forward pass")
)
