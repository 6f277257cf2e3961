// Package drift computes drift metrics between a primary and a reference set
// of embedding vectors.
package drift

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/c360/driftview/errors"
)

// Metric names a drift metric as it appears in the GraphQL schema.
type Metric string

// EuclideanDistance is the distance between the centroids of the two sets.
const EuclideanDistance Metric = "euclideanDistance"

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case EuclideanDistance:
		return EuclideanDistance, nil
	default:
		return "", errors.WrapInvalid(errors.ErrInvalidData, "drift", "ParseMetric",
			fmt.Sprintf("unknown metric %q", s))
	}
}

// Centroid returns the per-component mean of vectors. All vectors must share
// one non-zero length.
func Centroid(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "drift", "Centroid", "empty vector set")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "drift", "Centroid", "zero-length vector")
	}

	column := make([]float64, len(vectors))
	centroid := make([]float64, dim)
	for j := 0; j < dim; j++ {
		for i, v := range vectors {
			if len(v) != dim {
				return nil, errors.WrapInvalid(errors.ErrInvalidData, "drift", "Centroid",
					fmt.Sprintf("vector %d has length %d, want %d", i, len(v), dim))
			}
			column[i] = v[j]
		}
		centroid[j] = stat.Mean(column, nil)
	}
	return centroid, nil
}

// Distance returns the euclidean drift between primary and reference.
func Distance(primary, reference [][]float64) (float64, error) {
	p, err := Centroid(primary)
	if err != nil {
		return 0, errors.Wrap(err, "drift", "Distance", "primary centroid")
	}
	r, err := Centroid(reference)
	if err != nil {
		return 0, errors.Wrap(err, "drift", "Distance", "reference centroid")
	}
	if len(p) != len(r) {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "drift", "Distance",
			fmt.Sprintf("dimension mismatch: primary %d, reference %d", len(p), len(r)))
	}
	return floats.Distance(p, r, 2), nil
}

// Dimension is one embedding feature with its primary and reference samples.
type Dimension struct {
	ID        string
	Name      string
	Primary   [][]float64
	Reference [][]float64
}

// Compute evaluates metric for the dimension. The result is nil when either
// sample set is empty, which the API reports as null.
func (d Dimension) Compute(metric Metric) (*float64, error) {
	if metric != EuclideanDistance {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "drift", "Compute",
			fmt.Sprintf("unsupported metric %q", metric))
	}
	if len(d.Primary) == 0 || len(d.Reference) == 0 {
		return nil, nil
	}
	v, err := Distance(d.Primary, d.Reference)
	if err != nil {
		return nil, errors.Wrap(err, "drift", "Compute", d.Name)
	}
	return &v, nil
}
