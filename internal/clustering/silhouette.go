package clustering

import (
	"math"
)

// SilhouetteScore calculates the silhouette score for a single clustered point.
// Returns a score between -1 and 1:
//
//	-1: Point likely in wrong cluster
//	 0: Point on the border between clusters
//	+1: Point well matched to its cluster
//
// Noise points do not take part in either the intra- or inter-cluster mean.
func SilhouetteScore(pointIdx int, labels []int, distances [][]float64) float64 {
	if pointIdx < 0 || pointIdx >= len(labels) || labels[pointIdx] < 0 {
		return 0
	}

	current := labels[pointIdx]
	a := meanIntraClusterDistance(pointIdx, current, labels, distances)
	b, ok := minInterClusterDistance(pointIdx, current, labels, distances)
	if !ok {
		return 0
	}

	switch {
	case a < b:
		return 1 - a/b
	case a > b:
		return b/a - 1
	default:
		return 0
	}
}

// meanIntraClusterDistance is the mean distance to the other members of the point's cluster
func meanIntraClusterDistance(pointIdx, label int, labels []int, distances [][]float64) float64 {
	var sum float64
	count := 0
	for i, l := range labels {
		if i == pointIdx || l != label {
			continue
		}
		sum += distances[pointIdx][i]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// minInterClusterDistance is the smallest mean distance to any other cluster.
// ok is false when no other cluster exists.
func minInterClusterDistance(pointIdx, current int, labels []int, distances [][]float64) (float64, bool) {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, l := range labels {
		if l < 0 || l == current {
			continue
		}
		sums[l] += distances[pointIdx][i]
		counts[l]++
	}
	if len(counts) == 0 {
		return 0, false
	}

	best := math.MaxFloat64
	for l, c := range counts {
		if mean := sums[l] / float64(c); mean < best {
			best = mean
		}
	}
	return best, true
}

// AverageSilhouetteScore is the mean score over clustered points. It is 0 when
// fewer than two clusters exist, where the score is undefined.
func AverageSilhouetteScore(labels []int, distances [][]float64) float64 {
	if len(CountLabels(labels)) < 2 {
		return 0
	}

	var total float64
	count := 0
	for i, l := range labels {
		if l < 0 {
			continue
		}
		total += SilhouetteScore(i, labels, distances)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// DistanceMatrix computes pairwise distances between all points
func DistanceMatrix(points [][]float64, dist DistanceFunc) [][]float64 {
	n := len(points)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := dist(points[i], points[j])
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}

// SilhouetteAnalysis summarizes how well separated a flat clustering is
type SilhouetteAnalysis struct {
	OverallScore float64
	NumClusters  int
	NumClustered int
	Quality      string
}

// AnalyzeSilhouette scores a clustering under the given metric
func AnalyzeSilhouette(points [][]float64, labels []int, metric Metric) (*SilhouetteAnalysis, error) {
	dist, err := metric.DistanceFunc()
	if err != nil {
		return nil, err
	}
	if err := validatePoints(points); err != nil {
		return nil, err
	}

	score := AverageSilhouetteScore(labels, DistanceMatrix(points, dist))
	clustered := 0
	for _, l := range labels {
		if l >= 0 {
			clustered++
		}
	}

	return &SilhouetteAnalysis{
		OverallScore: score,
		NumClusters:  len(CountLabels(labels)),
		NumClustered: clustered,
		Quality:      interpretSilhouetteScore(score),
	}, nil
}

// interpretSilhouetteScore provides human-readable interpretation
func interpretSilhouetteScore(score float64) string {
	switch {
	case score >= 0.71:
		return "Excellent - Strong cluster structure"
	case score >= 0.51:
		return "Good - Reasonable cluster structure"
	case score >= 0.26:
		return "Fair - Weak cluster structure"
	case score >= 0:
		return "Poor - No substantial cluster structure"
	default:
		return "Very Poor - Artificial/forced clustering"
	}
}
