// Command perceptron trains and runs the toolbox models on labeled point
// data.
//
// To train: `go run ./cmd/perceptron train --data-file=points.json --model=slp --hidden-size=10 --epochs=1000`
//
// To infer: `go run ./cmd/perceptron infer --model=slp --model-file=slp-out.json --point=0.3,0.7`
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/ahmedtd/perceptron/dataset"
	"github.com/ahmedtd/perceptron/training"
	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&InferCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type TrainCommand struct {
	dataFile      string
	positiveColor string
	splitRatio    float64
	seed          int64

	model        string
	hiddenSize   int
	hiddenDims   string
	learningRate float64
	epochs       int
	hiddenFactor float64
	logEvery     int

	outputModelFile string
	format          string

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train a model, report its accuracy and save its parameters"
}

func (*TrainCommand) Usage() string {
	return ``
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dataFile, "data-file", "points.json", "Path to a points JSON file or an .npz file with x.npy and y.npy")
	f.StringVar(&c.positiveColor, "positive-color", "a", "Point color that is labeled 1 (points JSON only)")
	f.Float64Var(&c.splitRatio, "split-ratio", 0.8, "Fraction of the shuffled data used for training; the rest is used for testing")
	f.Int64Var(&c.seed, "seed", 12345, "Seed for shuffling and weight initialization")

	f.StringVar(&c.model, "model", "slp", "Model to train: unit, slp or mlp")
	f.IntVar(&c.hiddenSize, "hidden-size", 10, "Hidden layer size (slp)")
	f.StringVar(&c.hiddenDims, "hidden-dims", "4,4", "Comma-separated hidden layer sizes (mlp)")
	f.Float64Var(&c.learningRate, "learning-rate", 0.1, "Learning rate in (0, 1]")
	f.IntVar(&c.epochs, "epochs", 1, "Passes over the training data")
	f.Float64Var(&c.hiddenFactor, "hidden-factor", 1, "Extra scale for hidden-layer gradients (slp); must be positive")
	f.IntVar(&c.logEvery, "log-every", 0, "Log training loss every N epochs (0 disables)")

	f.StringVar(&c.outputModelFile, "output-model-file", "", "Path to save trained parameters (default <model>-out.<format>)")
	f.StringVar(&c.format, "format", "json", "Parameter file format: json or safetensors")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	if !(c.hiddenFactor > 0) {
		return fmt.Errorf("--hidden-factor must be positive, got %v", c.hiddenFactor)
	}

	r := rand.New(rand.NewSource(c.seed))

	xTrain, yTrain, xTest, yTest, err := c.loadData(r)
	if err != nil {
		return fmt.Errorf("while loading data set: %w", err)
	}
	log.Printf("Data loaded: %d training items, %d test items", len(xTrain), len(yTest))

	sess, err := c.newSession(xTrain, yTrain, r)
	if err != nil {
		return fmt.Errorf("while initializing training: %w", err)
	}

	opts := training.TrainOptions{
		Epochs:       c.epochs,
		HiddenFactor: float32(c.hiddenFactor),
		LogEvery:     c.logEvery,
	}
	if err := sess.Train(opts); err != nil {
		return fmt.Errorf("while training: %w", err)
	}

	trainPct, err := sess.Test(xTrain, yTrain)
	if err != nil {
		return fmt.Errorf("while testing on training data: %w", err)
	}
	testPct := 0.0
	if len(xTest) > 0 {
		testPct, err = sess.Test(xTest, yTest)
		if err != nil {
			return fmt.Errorf("while testing on test data: %w", err)
		}
	}
	log.Printf("model=%s epochs=%d training-pct=%.2f testing-pct=%.2f", c.model, c.epochs, trainPct*100, testPct*100)

	if t := sessionTimings(sess); t != nil {
		log.Printf("timings overall=%.3f forward=%.3f backprop=%.3f weightupdate=%.3f",
			t.Overall.Seconds(),
			t.Forward.Seconds(),
			t.Backpropagation.Seconds(),
			t.WeightUpdate.Seconds(),
		)
	}

	out := c.outputModelFile
	if out == "" {
		out = c.model + "-out." + c.format
	}
	if err := writeModel(sess, c.format, out); err != nil {
		return fmt.Errorf("while writing model: %w", err)
	}
	log.Printf("Model exported to %s", out)

	return nil
}

func (c *TrainCommand) loadData(r *rand.Rand) (xTrain [][]float32, yTrain []float32, xTest [][]float32, yTest []float32, err error) {
	if filepath.Ext(c.dataFile) == ".npz" {
		data, labels, err := dataset.LoadNPZ(c.dataFile)
		if err != nil {
			return nil, nil, nil, nil, err
		}

		perm := r.Perm(len(data))
		n := int(float64(len(data)) * c.splitRatio)
		for i, k := range perm {
			if i < n {
				xTrain = append(xTrain, data[k])
				yTrain = append(yTrain, labels[k])
			} else {
				xTest = append(xTest, data[k])
				yTest = append(yTest, labels[k])
			}
		}
		return xTrain, yTrain, xTest, yTest, nil
	}

	points, err := dataset.LoadPoints(c.dataFile)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	points = dataset.Shuffle(dataset.Normalize(points), r)
	trainPoints, testPoints, err := dataset.Split(points, c.splitRatio)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	xTrain, yTrain = dataset.InputsAndLabels(trainPoints, c.positiveColor)
	xTest, yTest = dataset.InputsAndLabels(testPoints, c.positiveColor)
	return xTrain, yTrain, xTest, yTest, nil
}

func (c *TrainCommand) newSession(x [][]float32, y []float32, r *rand.Rand) (session, error) {
	lr := float32(c.learningRate)
	switch c.model {
	case "unit":
		return training.NewPerceptronSession(x, y, lr, r)
	case "slp":
		return training.NewSLPSession(x, y, c.hiddenSize, lr, r)
	case "mlp":
		dims, err := parseDims(c.hiddenDims)
		if err != nil {
			return nil, err
		}
		return training.NewMLPSession(x, training.TargetsFromLabels(y), dims, lr, r)
	default:
		return nil, fmt.Errorf("unknown model %q", c.model)
	}
}

func parseDims(s string) ([]int, error) {
	var dims []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("while parsing hidden dims %q: %w", s, err)
		}
		if d < 1 {
			return nil, fmt.Errorf("hidden dims %q: layer size %d must be at least 1", s, d)
		}
		dims = append(dims, d)
	}
	return dims, nil
}
