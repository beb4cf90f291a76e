// Package dataset loads labeled point sets and turns them into the row and
// label slices the training sessions consume.
package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Point is one labeled 2D sample.  Color is the class name.
type Point struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

func ReadPoints(r io.Reader) ([]Point, error) {
	var points []Point
	if err := json.NewDecoder(r).Decode(&points); err != nil {
		return nil, fmt.Errorf("while decoding points: %w", err)
	}
	return points, nil
}

func LoadPoints(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening points file: %w", err)
	}
	defer f.Close()

	return ReadPoints(f)
}

func WritePoints(w io.Writer, points []Point) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(points); err != nil {
		return fmt.Errorf("while encoding points: %w", err)
	}
	return nil
}

// Normalize min-max scales X and Y independently into [0, 1].  A coordinate
// with no spread maps to 0.
func Normalize(points []Point) []Point {
	if len(points) == 0 {
		return []Point{}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	scaleUnit(xs)
	scaleUnit(ys)

	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: xs[i], Y: ys[i], Color: p.Color}
	}
	return out
}

func scaleUnit(v []float64) {
	lo, hi := floats.Min(v), floats.Max(v)
	floats.AddConst(-lo, v)
	if span := hi - lo; span > 0 && !math.IsInf(span, 0) {
		floats.Scale(1/span, v)
	} else {
		for i := range v {
			v[i] = 0
		}
	}
}

// Shuffle returns a shuffled copy of points; the same r state always yields
// the same order.
func Shuffle(points []Point, r *rand.Rand) []Point {
	out := slices.Clone(points)
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Split keeps the first floor(len*ratio) points for training and the rest for
// testing.
func Split(points []Point, ratio float64) (train, test []Point, err error) {
	if ratio < 0 || ratio > 1 {
		return nil, nil, fmt.Errorf("split ratio %v outside [0, 1]", ratio)
	}
	n := int(math.Floor(float64(len(points)) * ratio))
	return points[:n], points[n:], nil
}

// InputsAndLabels returns one [x, y] row per point and labels of 1 for points
// whose Color is positive, 0 otherwise.
func InputsAndLabels(points []Point, positive string) (data [][]float32, labels []float32) {
	data = make([][]float32, len(points))
	labels = make([]float32, len(points))
	for i, p := range points {
		data[i] = []float32{float32(p.X), float32(p.Y)}
		if p.Color == positive {
			labels[i] = 1
		}
	}
	return data, labels
}
