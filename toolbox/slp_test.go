package toolbox

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/diff/fd"
)

// goldenSLP is a small hand-built model with known forward outputs.
func goldenSLP(t *testing.T) *SLP {
	t.Helper()
	hidden := []Unit{
		NewUnit([]float32{1, 1}, 0, Sigmoid),
		NewUnit([]float32{0, 1}, 0.5, Sigmoid),
		NewUnit([]float32{0.5, 0.5}, 1, Sigmoid),
	}
	output := NewUnit([]float32{0, 0.5, 1}, 0, Sigmoid)
	slp, err := NewSLP(hidden, output)
	if err != nil {
		t.Fatalf("NewSLP: %v", err)
	}
	return slp
}

func TestNewSLPValidation(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	testCases := []struct {
		desc    string
		hidden  []Unit
		output  Unit
		wantErr error
	}{
		{
			desc:    "empty hidden layer",
			hidden:  []Unit{},
			output:  RandomUnit(0, Sigmoid, r),
			wantErr: ErrEmptyLayer,
		},
		{
			desc:    "inconsistent hidden widths",
			hidden:  []Unit{RandomUnit(3, Sigmoid, r), RandomUnit(4, Sigmoid, r)},
			output:  RandomUnit(2, Sigmoid, r),
			wantErr: ErrInconsistentInputWidth,
		},
		{
			desc:    "output width differs from hidden size",
			hidden:  []Unit{RandomUnit(3, Sigmoid, r), RandomUnit(3, Sigmoid, r)},
			output:  RandomUnit(3, Sigmoid, r),
			wantErr: ErrOutputWidthMismatch,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := NewSLP(tc.hidden, tc.output)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got err %v, want %v", err, tc.wantErr)
			}
			if !errors.Is(err, ErrStructuralInvalidity) {
				t.Errorf("err %v does not wrap ErrStructuralInvalidity", err)
			}
		})
	}
}

func TestRandomSLPShape(t *testing.T) {
	slp, err := RandomSLP(3, 2, Sigmoid, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("RandomSLP: %v", err)
	}
	if slp.NInputs != 3 {
		t.Errorf("NInputs = %d, want 3", slp.NInputs)
	}
	if len(slp.Hidden) != 2 {
		t.Fatalf("len(Hidden) = %d, want 2", len(slp.Hidden))
	}
	for i := range slp.Hidden {
		if len(slp.Hidden[i].W) != 3 {
			t.Errorf("hidden unit %d has %d weights, want 3", i, len(slp.Hidden[i].W))
		}
	}
	if len(slp.Output.W) != 2 {
		t.Errorf("output unit has %d weights, want 2", len(slp.Output.W))
	}
}

func TestRandomSLPRejectsBadSizes(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	if _, err := RandomSLP(2, -1, Sigmoid, r); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("negative hidden size: got err %v, want ErrNegativeSize", err)
	}
	if _, err := RandomSLP(-1, 2, Sigmoid, r); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("negative input size: got err %v, want ErrNegativeSize", err)
	}
	if _, err := RandomSLP(2, 0, Sigmoid, r); !errors.Is(err, ErrEmptyLayer) {
		t.Errorf("zero hidden size: got err %v, want ErrEmptyLayer", err)
	}
}

func TestSLPForwardCacheIsOwned(t *testing.T) {
	slp := goldenSLP(t)
	if _, err := slp.Forward([]float32{0.5, 1}); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	slp.Last.Inputs[0] = 100
	if got := slp.Hidden[0].Last.Inputs[0]; got != 0.5 {
		t.Errorf("model cache shares storage with hidden unit cache; unit input = %v, want 0.5", got)
	}
}

func TestNewSLPGradientsAreZero(t *testing.T) {
	got := NewSLPGradients(3, 2)
	want := &SLPGradients{
		OutputWeights: []float32{0, 0},
		HiddenBias:    []float32{0, 0},
		HiddenWeights: [][]float32{{0, 0, 0}, {0, 0, 0}},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("wrong gradients; diff (-got +want)\n%s", diff)
	}
}

func TestSLPForward(t *testing.T) {
	slp := goldenSLP(t)
	x := []float32{0.5, 1}

	y, err := slp.Forward(x)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	approx := cmpopts.EquateApprox(0, 0.05)

	hiddenOutputs := make([]float32, len(slp.Hidden))
	for i := range slp.Hidden {
		out, ok := slp.Hidden[i].Output()
		if !ok {
			t.Fatalf("hidden unit %d has no cached output", i)
		}
		hiddenOutputs[i] = out
	}
	if diff := cmp.Diff(hiddenOutputs, []float32{0.81, 0.81, 0.85}, approx); diff != "" {
		t.Errorf("wrong hidden outputs; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(y, float32(0.77), approx); diff != "" {
		t.Errorf("wrong output; diff (-got +want)\n%s", diff)
	}

	if diff := cmp.Diff(slp.Last, &Evaluation{Inputs: x, Output: y}); diff != "" {
		t.Errorf("wrong model cache; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(slp.Output.Last.Inputs, hiddenOutputs); diff != "" {
		t.Errorf("output unit did not see the hidden outputs; diff (-got +want)\n%s", diff)
	}
	for i := range slp.Hidden {
		if diff := cmp.Diff(slp.Hidden[i].Last.Inputs, x); diff != "" {
			t.Errorf("hidden unit %d did not see the model inputs; diff (-got +want)\n%s", i, diff)
		}
	}
}

func TestSLPForwardDimensionMismatch(t *testing.T) {
	slp, err := RandomSLP(3, 2, Sigmoid, rand.New(rand.NewSource(12345)))
	if err != nil {
		t.Fatalf("RandomSLP: %v", err)
	}
	if _, err := slp.Forward([]float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got err %v, want ErrDimensionMismatch", err)
	}
}

func TestSLPBackward(t *testing.T) {
	slp := goldenSLP(t)
	if _, err := slp.Forward([]float32{0.5, 1}); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	before := slp.Params()

	got, err := slp.Backward(1)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}

	// outputDelta = 2(y-1) * y(1-y) with y = 0.77915.
	want := &SLPGradients{
		OutputBias:    -0.0760036,
		OutputWeights: []float32{-0.0621386, -0.0621386, -0.0647515},
		HiddenBias:    []float32{0, -0.0056678, -0.0095863},
		HiddenWeights: [][]float32{
			{0, 0},
			{-0.0028339, -0.0056678},
			{-0.0047931, -0.0095863},
		},
	}
	if diff := cmp.Diff(got, want, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("wrong gradients; diff (-got +want)\n%s", diff)
	}

	if diff := cmp.Diff(slp.Params(), before); diff != "" {
		t.Errorf("Backward changed parameters; diff (-got +want)\n%s", diff)
	}
}

func TestSLPBackwardRequiresForward(t *testing.T) {
	slp := goldenSLP(t)
	if _, err := slp.Backward(1); !errors.Is(err, ErrStalePropagation) {
		t.Errorf("Backward before Forward: got err %v, want ErrStalePropagation", err)
	}

	if _, err := slp.Forward([]float32{0.5, 1}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	g, err := slp.Backward(1)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}
	if err := slp.Descend(g, 0.1, 1); err != nil {
		t.Fatalf("Descend: %v", err)
	}

	if _, err := slp.Backward(1); !errors.Is(err, ErrStalePropagation) {
		t.Errorf("Backward after Descend: got err %v, want ErrStalePropagation", err)
	}
}

func TestSLPBackwardHardCodesSigmoidHiddenSlope(t *testing.T) {
	hidden := []Unit{
		NewUnit([]float32{1, 1}, 0, ReLU),
		NewUnit([]float32{0.5, -1}, 2, ReLU),
	}
	output := NewUnit([]float32{0.5, 0.25}, 0, Sigmoid)
	slp, err := NewSLP(hidden, output)
	if err != nil {
		t.Fatalf("NewSLP: %v", err)
	}
	if _, err := slp.Forward([]float32{0.2, 0.4}); err != nil {
		t.Fatalf("Forward: %v", err)
	}

	g, err := slp.Backward(0)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}

	for i := range slp.Hidden {
		h := slp.Hidden[i].Last.Output
		want := g.OutputBias * SigmoidDerivative(h) * slp.Output.W[i]
		if math32.Abs(g.HiddenBias[i]-want) > 1e-7 {
			t.Errorf("hidden bias gradient %d = %v, want %v", i, g.HiddenBias[i], want)
		}
	}
}

func TestSLPDescend(t *testing.T) {
	slp := goldenSLP(t)
	if _, err := slp.Forward([]float32{0.5, 1}); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	g, err := slp.Backward(1)
	if err != nil {
		t.Fatalf("Backward: %v", err)
	}

	before := slp.Params()
	if err := slp.Descend(g, 0.5, 2); err != nil {
		t.Fatalf("Descend: %v", err)
	}
	after := slp.Params()

	if got, want := after.OutputLayerBias, before.OutputLayerBias-0.5*g.OutputBias; got != want {
		t.Errorf("output bias = %v, want %v", got, want)
	}
	for i := range slp.Hidden {
		want := before.HiddenLayerBias[i] - 0.5*2*g.HiddenBias[i]
		if math32.Abs(after.HiddenLayerBias[i]-want) > 1e-7 {
			t.Errorf("hidden bias %d = %v, want %v", i, after.HiddenLayerBias[i], want)
		}
	}
	if slp.Last != nil || slp.Output.Last != nil {
		t.Errorf("Descend left a stale cache")
	}

	bad := NewSLPGradients(2, 2)
	if err := slp.Descend(bad, 0.5, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Descend with wrong shape: got err %v, want ErrDimensionMismatch", err)
	}
	if diff := cmp.Diff(slp.Params(), after); diff != "" {
		t.Errorf("rejected Descend changed parameters; diff (-got +want)\n%s", diff)
	}
}

// slpLoss returns a function of the flattened SLP parameters (output bias,
// output weights, hidden biases, hidden weights) computing the squared error
// on (x, expected).
func slpLoss(t *testing.T, slp *SLP, x []float32, expected float32) func([]float64) float64 {
	return func(p []float64) float64 {
		m := unflattenSLP(slp, p)
		y, err := m.Forward(x)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		return float64(SquaredErrorLoss(y, expected))
	}
}

func flattenSLPGradients(g *SLPGradients) []float64 {
	out := []float64{float64(g.OutputBias)}
	for _, v := range g.OutputWeights {
		out = append(out, float64(v))
	}
	for _, v := range g.HiddenBias {
		out = append(out, float64(v))
	}
	for _, row := range g.HiddenWeights {
		for _, v := range row {
			out = append(out, float64(v))
		}
	}
	return out
}

func flattenSLP(s *SLP) []float64 {
	p := s.Params()
	return flattenSLPGradients(&SLPGradients{
		OutputBias:    p.OutputLayerBias,
		OutputWeights: p.OutputLayerWeights,
		HiddenBias:    p.HiddenLayerBias,
		HiddenWeights: p.HiddenLayerWeights,
	})
}

func unflattenSLP(shape *SLP, p []float64) *SLP {
	hidden := make([]Unit, len(shape.Hidden))
	output := Unit{Activation: shape.Output.Activation, W: make([]float32, len(shape.Output.W))}

	k := 0
	next := func() float32 {
		v := float32(p[k])
		k++
		return v
	}

	output.B = next()
	for j := range output.W {
		output.W[j] = next()
	}
	for i := range hidden {
		hidden[i] = Unit{Activation: shape.Hidden[i].Activation, W: make([]float32, shape.NInputs)}
		hidden[i].B = next()
	}
	for i := range hidden {
		for j := range hidden[i].W {
			hidden[i].W[j] = next()
		}
	}

	return &SLP{NInputs: shape.NInputs, Hidden: hidden, Output: output}
}

func TestSLPBackwardAgreesWithFiniteDifferences(t *testing.T) {
	r := rand.New(rand.NewSource(12345))

	models := map[string]*SLP{"golden": goldenSLP(t)}
	for _, name := range []string{"random-a", "random-b"} {
		hidden := make([]Unit, 4)
		for i := range hidden {
			hidden[i] = XavierUnit(3, 4, Sigmoid, r)
		}
		slp, err := NewSLP(hidden, XavierUnit(4, 1, Sigmoid, r))
		if err != nil {
			t.Fatalf("NewSLP: %v", err)
		}
		models[name] = slp
	}

	for name, slp := range models {
		t.Run(name, func(t *testing.T) {
			x := make([]float32, slp.NInputs)
			for j := range x {
				x[j] = r.Float32()
			}
			expected := float32(r.Intn(2))

			if _, err := slp.Forward(x); err != nil {
				t.Fatalf("Forward: %v", err)
			}
			g, err := slp.Backward(expected)
			if err != nil {
				t.Fatalf("Backward: %v", err)
			}

			numeric := fd.Gradient(nil, slpLoss(t, slp, x, expected), flattenSLP(slp), &fd.Settings{
				Formula: fd.Central,
				Step:    1e-2,
			})

			if diff := cmp.Diff(flattenSLPGradients(g), numeric, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
				t.Errorf("analytic and numeric gradients disagree; diff (-analytic +numeric)\n%s", diff)
			}
		})
	}
}
