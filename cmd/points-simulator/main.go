// Command points-simulator writes a synthetic labeled points file that the
// perceptron command can train on.  Points above the line
// y = slope*x + intercept*scale are colored "a", the rest "b".
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"

	"github.com/ahmedtd/perceptron/dataset"
)

var (
	count     = flag.Int("count", 1000, "Number of points to generate")
	seed      = flag.Int64("seed", 12345, "Random seed")
	slope     = flag.Float64("slope", 1.0, "Slope of the true decision boundary")
	intercept = flag.Float64("intercept", 0.0, "Intercept of the true decision boundary, as a fraction of scale")
	scale     = flag.Float64("scale", 100.0, "Points are drawn uniformly from [0, scale) in both coordinates")
	noise     = flag.Float64("noise", 0.0, "Standard deviation of gaussian noise added to each coordinate after labeling")
	output    = flag.String("output", "points.json", "Path to write the points to")
)

func main() {
	flag.Parse()

	points := generateDataset(*count, rand.New(rand.NewSource(*seed)))

	numA := 0
	for _, p := range points {
		if p.Color == "a" {
			numA++
		}
	}
	log.Printf("generated data set has %d a points and %d b points", numA, len(points)-numA)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Error: while creating output file: %v", err)
	}
	defer f.Close()

	if err := dataset.WritePoints(f, points); err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Printf("wrote %s", *output)
}

func generateDataset(m int, r *rand.Rand) []dataset.Point {
	points := make([]dataset.Point, m)
	for i := range points {
		// Generate a point and classify it according to the "true"
		// boundary.
		x := r.Float64() * *scale
		y := r.Float64() * *scale
		color := "b"
		if y > *slope*x+*intercept*(*scale) {
			color = "a"
		}

		// Perturb the point a little bit with noise.
		points[i] = dataset.Point{
			X:     x + *noise*r.NormFloat64(),
			Y:     y + *noise*r.NormFloat64(),
			Color: color,
		}
	}
	return points
}
