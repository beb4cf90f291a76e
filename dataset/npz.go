package dataset

import (
	"fmt"

	"github.com/sbinet/npyio/npz"
)

// LoadNPZ reads a numeric dataset from an .npz archive holding x.npy
// (float64, shape (n, d)) and y.npy (float64, shape (n)).
func LoadNPZ(path string) (data [][]float32, labels []float32, err error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("while opening npz file: %w", err)
	}
	defer r.Close()

	xHeader := r.Header("x.npy")
	if xHeader == nil {
		return nil, nil, fmt.Errorf("no x.npy in %s", path)
	}
	if len(xHeader.Descr.Shape) != 2 {
		return nil, nil, fmt.Errorf("x.npy has shape %v, want (n, d)", xHeader.Descr.Shape)
	}
	yHeader := r.Header("y.npy")
	if yHeader == nil {
		return nil, nil, fmt.Errorf("no y.npy in %s", path)
	}
	if len(yHeader.Descr.Shape) != 1 {
		return nil, nil, fmt.Errorf("y.npy has shape %v, want (n)", yHeader.Descr.Shape)
	}

	// numpy writes C-order arrays, so row k of x is contiguous.
	var rawX []float64
	if err := r.Read("x.npy", &rawX); err != nil {
		return nil, nil, fmt.Errorf("while reading x.npy: %w", err)
	}
	var rawY []float64
	if err := r.Read("y.npy", &rawY); err != nil {
		return nil, nil, fmt.Errorf("while reading y.npy: %w", err)
	}

	n, d := xHeader.Descr.Shape[0], xHeader.Descr.Shape[1]
	if len(rawX) != n*d {
		return nil, nil, fmt.Errorf("x.npy holds %d values, want %d", len(rawX), n*d)
	}
	if len(rawY) != n {
		return nil, nil, fmt.Errorf("y.npy holds %d labels for %d rows of x.npy", len(rawY), n)
	}

	data = make([][]float32, n)
	for k := range data {
		row := make([]float32, d)
		for j := range row {
			row[j] = float32(rawX[k*d+j])
		}
		data[k] = row
	}

	labels = make([]float32, len(rawY))
	for k, v := range rawY {
		labels[k] = float32(v)
	}

	return data, labels, nil
}
