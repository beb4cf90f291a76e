package training

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmedtd/perceptron/toolbox"
)

func andGate() ([][]float32, []float32) {
	return [][]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, []float32{0, 0, 0, 1}
}

func TestNewSessionValidation(t *testing.T) {
	data, labels := andGate()

	testCases := []struct {
		desc         string
		data         [][]float32
		labels       []float32
		learningRate float32
		wantErr      error
	}{
		{desc: "empty data", data: [][]float32{}, labels: []float32{}, learningRate: 0.1, wantErr: toolbox.ErrEmptyDataset},
		{desc: "fewer labels than items", data: data, labels: labels[:3], learningRate: 0.1, wantErr: toolbox.ErrLabelMismatch},
		{desc: "zero learning rate", data: data, labels: labels, learningRate: 0, wantErr: toolbox.ErrLearningRateOutOfRange},
		{desc: "learning rate above 1", data: data, labels: labels, learningRate: 1.1, wantErr: toolbox.ErrLearningRateOutOfRange},
		{desc: "ragged data", data: [][]float32{{0, 0}, {0}, {1, 0}, {1, 1}}, labels: labels, learningRate: 0.1, wantErr: toolbox.ErrRaggedDataset},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			r := rand.New(rand.NewSource(12345))

			_, err := NewPerceptronSession(tc.data, tc.labels, tc.learningRate, r)
			assert.ErrorIs(t, err, tc.wantErr, "perceptron")

			_, err = NewSLPSession(tc.data, tc.labels, 3, tc.learningRate, r)
			assert.ErrorIs(t, err, tc.wantErr, "slp")

			_, err = NewMLPSession(tc.data, TargetsFromLabels(tc.labels), []int{3}, tc.learningRate, r)
			assert.ErrorIs(t, err, tc.wantErr, "mlp")
		})
	}
}

func TestNewPerceptronSession(t *testing.T) {
	data, labels := andGate()
	s, err := NewPerceptronSession(data, labels, 1, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)

	assert.Equal(t, 4, s.ItemCount)
	assert.Equal(t, 0, s.Epochs)
	assert.Equal(t, toolbox.Step, s.Unit.Activation)
	assert.Len(t, s.Unit.W, 2)
}

func TestPerceptronTrainSinglePass(t *testing.T) {
	data, labels := andGate()
	s, err := NewPerceptronSession(data, labels, 0.5, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)
	s.Unit = toolbox.NewUnit([]float32{0.5, 0.5}, 0.5, toolbox.Step)

	require.NoError(t, s.Train(TrainOptions{}))

	// (0,0) and (0,1) fire wrongly, (1,0) is right, (1,1) fails to fire.
	assert.Equal(t, []float32{1, 0.5}, s.Unit.W)
	assert.Equal(t, float32(0), s.Unit.B)
	assert.Equal(t, 1, s.Epochs)
}

func TestPerceptronTrainChangesParameters(t *testing.T) {
	data, labels := andGate()
	const rate = 0.01

	checked := 0
	for seed := int64(1); seed <= 20; seed++ {
		s, err := NewPerceptronSession(data, labels, rate, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)

		before := s.Export()
		if before.Bias <= rate {
			continue
		}
		require.NoError(t, s.Train(TrainOptions{}))
		after := s.Export()

		// Non-negative weights and a bias above the rate make (0,0) and then
		// (0,1) fire wrongly, so the bias and the second weight both move.
		assert.NotEqual(t, before.Bias, after.Bias, "seed %d", seed)
		assert.False(t, slices.Equal(before.Weights, after.Weights), "seed %d: weights unchanged at %v", seed, after.Weights)
		checked++
	}
	require.NotZero(t, checked)
}

func TestPerceptronLearnsAND(t *testing.T) {
	data, labels := andGate()
	s, err := NewPerceptronSession(data, labels, 0.1, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)

	require.NoError(t, s.Train(TrainOptions{Epochs: 100}))
	assert.Equal(t, 100, s.Epochs)

	acc, err := s.Test(data, labels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestPerceptronTestAccuracy(t *testing.T) {
	data, labels := andGate()
	s := ImportPerceptron(toolbox.UnitParams{Weights: []float32{1, 1}, Bias: -1.5})

	acc, err := s.Test(data, labels)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	wrong := []float32{0, 0, 0, 0}
	acc, err = s.Test(data, wrong)
	require.NoError(t, err)
	assert.Equal(t, 0.75, acc)

	_, err = s.Test(data, labels[:2])
	assert.ErrorIs(t, err, toolbox.ErrLabelMismatch)

	_, err = s.Test([][]float32{}, []float32{})
	assert.ErrorIs(t, err, toolbox.ErrEmptyDataset)

	_, err = s.Test([][]float32{{1, 1, 1}}, []float32{1})
	assert.ErrorIs(t, err, toolbox.ErrDimensionMismatch)
}

func TestPerceptronExportImport(t *testing.T) {
	data, labels := andGate()
	s, err := NewPerceptronSession(data, labels, 0.1, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)
	require.NoError(t, s.Train(TrainOptions{Epochs: 5}))

	imported := ImportPerceptron(s.Export())
	for _, x := range data {
		want, err := s.Predict(x)
		require.NoError(t, err)
		got, err := imported.Predict(x)
		require.NoError(t, err)
		assert.Equal(t, want, got, "Predict(%v)", x)
	}
}

func TestTrainOptionsDefaults(t *testing.T) {
	got, err := TrainOptions{}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, TrainOptions{Epochs: 1, HiddenFactor: 1}, got)

	kept, err := TrainOptions{Epochs: 3, HiddenFactor: 2, LogEvery: 1}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, TrainOptions{Epochs: 3, HiddenFactor: 2, LogEvery: 1}, kept)

	for _, factor := range []float32{-1, -0.5, float32(math.NaN())} {
		_, err := TrainOptions{HiddenFactor: factor}.withDefaults()
		assert.ErrorIs(t, err, toolbox.ErrHiddenFactorOutOfRange, "HiddenFactor %v", factor)
		assert.ErrorIs(t, err, toolbox.ErrParameterOutOfRange, "HiddenFactor %v", factor)
	}
}

func TestTrainRejectsNegativeHiddenFactor(t *testing.T) {
	data, labels := andGate()

	p, err := NewPerceptronSession(data, labels, 0.1, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)
	before := p.Export()
	assert.ErrorIs(t, p.Train(TrainOptions{HiddenFactor: -1}), toolbox.ErrParameterOutOfRange)
	assert.Equal(t, before, p.Export())
	assert.Zero(t, p.Epochs)

	s, err := NewSLPSession(data, labels, 3, 0.5, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Train(TrainOptions{HiddenFactor: -2}), toolbox.ErrParameterOutOfRange)
	assert.Zero(t, s.Epochs)

	m, err := NewMLPSession(data, columnTargets(labels), []int{3}, 0.5, rand.New(rand.NewSource(12345)))
	require.NoError(t, err)
	assert.ErrorIs(t, m.Train(TrainOptions{HiddenFactor: -2}), toolbox.ErrParameterOutOfRange)
	assert.Zero(t, m.Epochs)
}

func columnTargets(labels []float32) [][]float32 {
	targets := make([][]float32, len(labels))
	for k, l := range labels {
		targets[k] = []float32{l}
	}
	return targets
}

func TestSessionsRejectNegativeSizes(t *testing.T) {
	data, labels := andGate()

	_, err := NewSLPSession(data, labels, -1, 0.5, rand.New(rand.NewSource(12345)))
	assert.ErrorIs(t, err, toolbox.ErrNegativeSize)

	_, err = NewMLPSession(data, columnTargets(labels), []int{3, -1}, 0.5, rand.New(rand.NewSource(12345)))
	assert.ErrorIs(t, err, toolbox.ErrNegativeSize)
}

func TestThreshold(t *testing.T) {
	assert.Equal(t, float32(0), threshold(0.49))
	assert.Equal(t, float32(1), threshold(0.5))
	assert.Equal(t, float32(1), threshold(0.9))
}
