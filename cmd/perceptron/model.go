package main

import (
	"fmt"
	"os"

	"github.com/ahmedtd/perceptron/toolbox"
	"github.com/ahmedtd/perceptron/training"
)

// session is the part of the training sessions the commands drive.
type session interface {
	Train(opts training.TrainOptions) error
	Predict(x []float32) (float32, error)
	Test(data [][]float32, labels []float32) (float64, error)
}

var (
	_ session = (*training.PerceptronSession)(nil)
	_ session = (*training.SLPSession)(nil)
	_ session = (*training.MLPSession)(nil)
)

func sessionTimings(s session) *training.Timings {
	switch s := s.(type) {
	case *training.SLPSession:
		return &s.Timings
	case *training.MLPSession:
		return &s.Timings
	default:
		return nil
	}
}

func writeModel(s session, format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating model file: %w", err)
	}
	defer f.Close()

	switch format {
	case "json":
		var params any
		switch s := s.(type) {
		case *training.PerceptronSession:
			params = s.Export()
		case *training.SLPSession:
			params = s.Export()
		case *training.MLPSession:
			params = s.Export()
		default:
			return fmt.Errorf("unsupported session %T", s)
		}
		if err := toolbox.WriteParamsJSON(f, params); err != nil {
			return err
		}

	case "safetensors":
		tensors := map[string]*toolbox.AF32{}
		switch s := s.(type) {
		case *training.PerceptronSession:
			s.Unit.DumpTensors("unit", tensors)
		case *training.SLPSession:
			s.Model.DumpTensors(tensors)
		case *training.MLPSession:
			s.Model.DumpTensors(tensors)
		default:
			return fmt.Errorf("unsupported session %T", s)
		}
		if err := toolbox.WriteSafeTensors(f, tensors); err != nil {
			return fmt.Errorf("while writing model tensors: %w", err)
		}

	default:
		return fmt.Errorf("unknown format %q", format)
	}

	return f.Close()
}

func loadSession(model, format, path string) (session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening model file: %w", err)
	}
	defer f.Close()

	switch format {
	case "json":
		switch model {
		case "unit":
			var p toolbox.UnitParams
			if err := toolbox.ReadParamsJSON(f, &p); err != nil {
				return nil, err
			}
			return training.ImportPerceptron(p), nil
		case "slp":
			var p toolbox.SLPParams
			if err := toolbox.ReadParamsJSON(f, &p); err != nil {
				return nil, err
			}
			return training.ImportSLP(p)
		case "mlp":
			var p toolbox.MLPParams
			if err := toolbox.ReadParamsJSON(f, &p); err != nil {
				return nil, err
			}
			return training.ImportMLP(p)
		}

	case "safetensors":
		tensors, err := toolbox.ReadSafeTensors(f)
		if err != nil {
			return nil, fmt.Errorf("while reading model tensors: %w", err)
		}
		switch model {
		case "unit":
			u := toolbox.Unit{Activation: toolbox.Step}
			if err := u.LoadTensors("unit", tensors); err != nil {
				return nil, fmt.Errorf("while restoring unit: %w", err)
			}
			return training.ImportPerceptron(u.Params()), nil
		case "slp":
			m, err := toolbox.SLPFromTensors(tensors, toolbox.Sigmoid)
			if err != nil {
				return nil, fmt.Errorf("while restoring model: %w", err)
			}
			return training.ImportSLP(m.Params())
		case "mlp":
			m, err := toolbox.MLPFromTensors(tensors, toolbox.Sigmoid, toolbox.Sigmoid)
			if err != nil {
				return nil, fmt.Errorf("while restoring model: %w", err)
			}
			return training.ImportMLP(m.Params())
		}

	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	return nil, fmt.Errorf("unknown model %q", model)
}
