package clustering

import (
	"errors"
	"fmt"
	"log/slog"

	"watchtrail/internal/core"
	"watchtrail/internal/logger"
)

// ErrInvalidConfig is returned for parameters that make a clustering run impossible.
var ErrInvalidConfig = errors.New("invalid clustering configuration")

// HDBSCANConfig holds configuration for one density-based clustering run
type HDBSCANConfig struct {
	MinClusterSize     int             // Smallest group reported as a cluster
	MinSamples         int             // Neighbour count k used for core distances, 0 uses raw distances
	Metric             Metric          // Pairwise distance
	Normalize          bool            // L2-normalize vectors before measuring distance
	SelectionMethod    SelectionMethod // excess_of_mass or epsilon
	SelectionEpsilon   float64         // Distance radius for epsilon selection
	AllowSingleCluster bool            // Let the root of the hierarchy be returned as a cluster
}

// DefaultHDBSCANConfig returns the content-stage defaults: euclidean distance on
// normalized vectors, which ranks neighbours the same way cosine distance does
func DefaultHDBSCANConfig() HDBSCANConfig {
	return HDBSCANConfig{
		MinClusterSize:  5,
		MinSamples:      1,
		Metric:          MetricEuclidean,
		Normalize:       true,
		SelectionMethod: SelectionExcessOfMass,
	}
}

// DefaultTimeHDBSCANConfig returns the defaults for clustering standardized
// timestamps inside one content group, where groups are small
func DefaultTimeHDBSCANConfig() HDBSCANConfig {
	return HDBSCANConfig{
		MinClusterSize:  2,
		MinSamples:      1,
		Metric:          MetricEuclidean,
		SelectionMethod: SelectionExcessOfMass,
	}
}

// Validate fails fast on parameters that cannot produce a clustering
func (c HDBSCANConfig) Validate() error {
	if c.MinClusterSize < 1 {
		return fmt.Errorf("%w: min_cluster_size must be >= 1, got %d", ErrInvalidConfig, c.MinClusterSize)
	}
	if c.MinSamples < 0 {
		return fmt.Errorf("%w: min_samples must be >= 0, got %d", ErrInvalidConfig, c.MinSamples)
	}
	if _, err := c.Metric.DistanceFunc(); err != nil {
		return err
	}
	if _, err := ParseSelectionMethod(string(c.SelectionMethod)); err != nil {
		return err
	}
	if c.SelectionEpsilon < 0 {
		return fmt.Errorf("%w: cluster_selection_epsilon must be >= 0, got %g", ErrInvalidConfig, c.SelectionEpsilon)
	}
	return nil
}

// Result is the flat clustering produced by one run.
type Result struct {
	Labels      []int          // One label per input point, core.NoiseLabel for noise
	NumClusters int            // Distinct non-noise labels
	NoiseCount  int            // Points labelled as noise
	Sizes       []int          // Member count per label
	Stabilities []float64      // Excess-of-mass stability per label
	Tree        *CondensedTree // Condensed hierarchy the labels were cut from
}

// HDBSCANClusterer runs the density-based pipeline: core distances, mutual
// reachability, minimum spanning tree, condensed hierarchy, flat selection
type HDBSCANClusterer struct {
	config HDBSCANConfig
	dist   DistanceFunc
	log    *slog.Logger
}

// NewHDBSCANClusterer creates a clusterer after validating its configuration
func NewHDBSCANClusterer(config HDBSCANConfig) (*HDBSCANClusterer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dist, err := config.Metric.DistanceFunc()
	if err != nil {
		return nil, err
	}
	return &HDBSCANClusterer{
		config: config,
		dist:   dist,
		log:    logger.Get(),
	}, nil
}

// Fit clusters the points. The input slice is not modified.
func (h *HDBSCANClusterer) Fit(points [][]float64) (*Result, error) {
	if err := validatePoints(points); err != nil {
		return nil, err
	}

	n := len(points)
	if n == 0 {
		return &Result{Labels: []int{}}, nil
	}
	if n < 2 {
		// A lone point has no density to compare against
		return newResult(noiseLabels(n), nil), nil
	}

	if h.config.Normalize {
		points = NormalizeRows(points)
	}

	coreDistances, err := CoreDistances(points, h.config.MinSamples, h.dist)
	if err != nil {
		return nil, fmt.Errorf("core distances: %w", err)
	}

	graph := NewReachabilityGraph(points, coreDistances, h.dist)
	mst := MinimumSpanningTree(graph)

	if allZero(mst) {
		// Every point coincides: one giant cluster if it is big enough, else
		// noise. There is no hierarchy to select from, so allow_single_cluster
		// does not apply.
		labels := noiseLabels(n)
		if n >= h.config.MinClusterSize {
			for i := range labels {
				labels[i] = 0
			}
		}
		h.log.Debug("All points coincide", "points", n, "clustered", labels[0] == 0)
		result := newResult(labels, nil)
		result.Stabilities = make([]float64, result.NumClusters)
		return result, nil
	}

	dendrogram := SingleLinkage(mst, n)
	tree := Condense(dendrogram, h.config.MinClusterSize)

	var selected []bool
	switch h.config.SelectionMethod {
	case SelectionEpsilon:
		selected = tree.SelectEpsilon(h.config.SelectionEpsilon, h.config.AllowSingleCluster)
	default:
		selected = tree.SelectExcessOfMass(h.config.AllowSingleCluster)
	}

	labels, ids := tree.Label(selected)
	result := newResult(labels, tree)

	stability := tree.Stabilities()
	result.Stabilities = make([]float64, len(ids))
	for label, id := range ids {
		result.Stabilities[label] = stability[id]
	}

	h.log.Debug("HDBSCAN run complete",
		"points", n,
		"clusters", result.NumClusters,
		"noise", result.NoiseCount,
		"condensed_nodes", len(tree.Clusters),
	)

	return result, nil
}

func newResult(labels []int, tree *CondensedTree) *Result {
	r := &Result{Labels: labels, Tree: tree}
	for _, l := range labels {
		if l == core.NoiseLabel {
			r.NoiseCount++
			continue
		}
		for len(r.Sizes) <= l {
			r.Sizes = append(r.Sizes, 0)
		}
		r.Sizes[l]++
	}
	r.NumClusters = len(r.Sizes)
	return r
}

func noiseLabels(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = core.NoiseLabel
	}
	return labels
}

func allZero(edges []Edge) bool {
	for _, e := range edges {
		if e.Weight != 0 {
			return false
		}
	}
	return true
}
