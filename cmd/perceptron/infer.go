package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/google/subcommands"
)

type InferCommand struct {
	model     string
	modelFile string
	format    string
	point     string
}

var _ subcommands.Command = (*InferCommand)(nil)

func (*InferCommand) Name() string {
	return "infer"
}

func (*InferCommand) Synopsis() string {
	return "Predict the label of a point using saved model parameters"
}

func (*InferCommand) Usage() string {
	return ``
}

func (c *InferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.model, "model", "slp", "Model stored in the parameter file: unit, slp or mlp")
	f.StringVar(&c.modelFile, "model-file", "slp-out.json", "Path to the parameters produced by the train command")
	f.StringVar(&c.format, "format", "json", "Parameter file format: json or safetensors")
	f.StringVar(&c.point, "point", "", "Comma-separated (normalized) input values, e.g. 0.3,0.7")
}

func (c *InferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *InferCommand) executeErr(ctx context.Context) error {
	sess, err := loadSession(c.model, c.format, c.modelFile)
	if err != nil {
		return fmt.Errorf("while loading model: %w", err)
	}
	log.Printf("Model imported from %s", c.modelFile)

	x, err := parsePoint(c.point)
	if err != nil {
		return fmt.Errorf("while parsing point: %w", err)
	}

	pred, err := sess.Predict(x)
	if err != nil {
		return fmt.Errorf("while predicting: %w", err)
	}

	log.Printf("Prediction: %v", pred)
	return nil
}

func parsePoint(s string) ([]float32, error) {
	if s == "" {
		return nil, fmt.Errorf("no point given")
	}
	var x []float32
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, err
		}
		x = append(x, float32(v))
	}
	return x, nil
}
