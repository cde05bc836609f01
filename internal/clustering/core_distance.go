package clustering

import (
	"fmt"
	"sort"
)

// CoreDistances computes, for every point, the distance to its k-th nearest
// non-self neighbour. k is clamped to n-1; k == 0 yields all zeros.
// A set with fewer than two points has no neighbours, so any k >= 1 is a
// configuration error there.
func CoreDistances(points [][]float64, k int, dist DistanceFunc) ([]float64, error) {
	n := len(points)
	if k < 0 {
		return nil, fmt.Errorf("%w: min_samples must be >= 0, got %d", ErrInvalidConfig, k)
	}
	if k >= 1 && n < 2 {
		return nil, fmt.Errorf("%w: min_samples=%d needs at least 2 points, got %d", ErrInvalidConfig, k, n)
	}

	k = min(k, n-1)
	core := make([]float64, n)
	if k == 0 {
		return core, nil
	}

	neighbors := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		neighbors = neighbors[:0]
		for j := 0; j < n; j++ {
			if j != i {
				neighbors = append(neighbors, dist(points[i], points[j]))
			}
		}
		sort.Float64s(neighbors)
		core[i] = neighbors[k-1]
	}

	return core, nil
}

// mutualReachability is max(core(a), core(b), d(a, b)).
func mutualReachability(coreA, coreB, d float64) float64 {
	return max(coreA, coreB, d)
}
