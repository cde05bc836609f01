package clustering

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Metric names a pairwise distance function.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
	MetricManhattan Metric = "manhattan"
)

// DistanceFunc computes the distance between two feature vectors of equal length.
type DistanceFunc func(a, b []float64) float64

// DistanceFunc returns the distance function for the metric.
func (m Metric) DistanceFunc() (DistanceFunc, error) {
	switch m {
	case MetricEuclidean, "":
		return EuclideanDistance, nil
	case MetricCosine:
		return CosineDistance, nil
	case MetricManhattan:
		return ManhattanDistance, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", ErrInvalidConfig, m)
	}
}

// EuclideanDistance is the L2 distance. On L2-normalized vectors it is a monotone
// function of cosine distance: sqrt(2 - 2cos).
func EuclideanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// ManhattanDistance is the L1 distance.
func ManhattanDistance(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// CosineDistance computes 1 - cosine similarity, in [0, 2].
// Zero vectors are treated as orthogonal to everything.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return 1.0
	}

	magA := floats.Norm(a, 2)
	magB := floats.Norm(b, 2)
	if magA == 0 || magB == 0 {
		return 1.0
	}

	similarity := floats.Dot(a, b) / (magA * magB)

	// Clamp floating point drift
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}

	return 1.0 - similarity
}

// NormalizeRows returns an L2-normalized copy of every vector.
// Zero vectors are copied unchanged.
func NormalizeRows(vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, len(v))
		copy(row, v)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		out[i] = row
	}
	return out
}

// validatePoints checks that every vector has the same, non-zero dimension and finite values.
func validatePoints(points [][]float64) error {
	if len(points) == 0 {
		return nil
	}
	dim := len(points[0])
	if dim == 0 {
		return fmt.Errorf("%w: point 0 has no features", ErrInvalidConfig)
	}
	for i, p := range points {
		if len(p) != dim {
			return fmt.Errorf("%w: point %d has %d features, expected %d", ErrInvalidConfig, i, len(p), dim)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: point %d has a non-finite feature", ErrInvalidConfig, i)
			}
		}
	}
	return nil
}
