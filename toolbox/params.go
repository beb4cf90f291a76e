package toolbox

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// UnitParams is everything needed to rebuild a Unit apart from its
// activation, which the caller supplies on import.
type UnitParams struct {
	Weights []float32 `json:"weights"`
	Bias    float32   `json:"bias"`
}

type SLPParams struct {
	OutputLayerBias    float32     `json:"outputLayerBias"`
	OutputLayerWeights []float32   `json:"outputLayerWeights"`
	HiddenLayerBias    []float32   `json:"hiddenLayerBias"`
	HiddenLayerWeights [][]float32 `json:"hiddenLayerWeights"`
}

type MLPParams struct {
	OutputLayerBias     []float32     `json:"outputLayerBias"`
	OutputLayerWeights  [][]float32   `json:"outputLayerWeights"`
	HiddenLayersBias    [][]float32   `json:"hiddenLayersBias"`
	HiddenLayersWeights [][][]float32 `json:"hiddenLayersWeights"`
}

func (u *Unit) Params() UnitParams {
	return UnitParams{
		Weights: slices.Clone(u.W),
		Bias:    u.B,
	}
}

func UnitFromParams(p UnitParams, activation ActivationType) Unit {
	return NewUnit(slices.Clone(p.Weights), p.Bias, activation)
}

func (s *SLP) Params() SLPParams {
	p := SLPParams{
		OutputLayerBias:    s.Output.B,
		OutputLayerWeights: slices.Clone(s.Output.W),
		HiddenLayerBias:    make([]float32, len(s.Hidden)),
		HiddenLayerWeights: make([][]float32, len(s.Hidden)),
	}
	for i := range s.Hidden {
		p.HiddenLayerBias[i] = s.Hidden[i].B
		p.HiddenLayerWeights[i] = slices.Clone(s.Hidden[i].W)
	}
	return p
}

// SLPFromParams rebuilds an SLP whose every unit uses activation.
func SLPFromParams(p SLPParams, activation ActivationType) (*SLP, error) {
	if len(p.HiddenLayerBias) != len(p.HiddenLayerWeights) {
		return nil, fmt.Errorf("%w: %d hidden biases for %d hidden weight rows", ErrDimensionMismatch, len(p.HiddenLayerBias), len(p.HiddenLayerWeights))
	}

	hidden := make([]Unit, len(p.HiddenLayerWeights))
	for i := range hidden {
		hidden[i] = UnitFromParams(UnitParams{Weights: p.HiddenLayerWeights[i], Bias: p.HiddenLayerBias[i]}, activation)
	}
	output := UnitFromParams(UnitParams{Weights: p.OutputLayerWeights, Bias: p.OutputLayerBias}, activation)

	return NewSLP(hidden, output)
}

func (m *MLP) Params() MLPParams {
	p := MLPParams{
		OutputLayerBias:     make([]float32, len(m.Output)),
		OutputLayerWeights:  make([][]float32, len(m.Output)),
		HiddenLayersBias:    make([][]float32, len(m.Hidden)),
		HiddenLayersWeights: make([][][]float32, len(m.Hidden)),
	}
	for k := range m.Output {
		p.OutputLayerBias[k] = m.Output[k].B
		p.OutputLayerWeights[k] = slices.Clone(m.Output[k].W)
	}
	for l := range m.Hidden {
		p.HiddenLayersBias[l] = make([]float32, len(m.Hidden[l]))
		p.HiddenLayersWeights[l] = make([][]float32, len(m.Hidden[l]))
		for i := range m.Hidden[l] {
			p.HiddenLayersBias[l][i] = m.Hidden[l][i].B
			p.HiddenLayersWeights[l][i] = slices.Clone(m.Hidden[l][i].W)
		}
	}
	return p
}

func MLPFromParams(p MLPParams, hiddenActivation, outputActivation ActivationType) (*MLP, error) {
	if len(p.HiddenLayersBias) != len(p.HiddenLayersWeights) {
		return nil, fmt.Errorf("%w: %d hidden bias layers for %d hidden weight layers", ErrDimensionMismatch, len(p.HiddenLayersBias), len(p.HiddenLayersWeights))
	}
	if len(p.OutputLayerBias) != len(p.OutputLayerWeights) {
		return nil, fmt.Errorf("%w: %d output biases for %d output weight rows", ErrDimensionMismatch, len(p.OutputLayerBias), len(p.OutputLayerWeights))
	}

	hidden := make([][]Unit, len(p.HiddenLayersWeights))
	for l := range hidden {
		if len(p.HiddenLayersBias[l]) != len(p.HiddenLayersWeights[l]) {
			return nil, fmt.Errorf("%w: layer %d has %d biases for %d weight rows", ErrDimensionMismatch, l, len(p.HiddenLayersBias[l]), len(p.HiddenLayersWeights[l]))
		}
		hidden[l] = make([]Unit, len(p.HiddenLayersWeights[l]))
		for i := range hidden[l] {
			hidden[l][i] = UnitFromParams(UnitParams{Weights: p.HiddenLayersWeights[l][i], Bias: p.HiddenLayersBias[l][i]}, hiddenActivation)
		}
	}

	output := make([]Unit, len(p.OutputLayerWeights))
	for k := range output {
		output[k] = UnitFromParams(UnitParams{Weights: p.OutputLayerWeights[k], Bias: p.OutputLayerBias[k]}, outputActivation)
	}

	return NewMLP(hidden, output)
}

// WriteParamsJSON writes any of the *Params structs as indented JSON.
func WriteParamsJSON(w io.Writer, params any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(params); err != nil {
		return fmt.Errorf("while encoding parameters: %w", err)
	}
	return nil
}

// ReadParamsJSON decodes into params, which must be a pointer to one of the
// *Params structs.
func ReadParamsJSON(r io.Reader, params any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("while decoding parameters: %w", err)
	}
	return nil
}
