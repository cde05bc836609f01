package clustering

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
)

func line(values ...float64) [][]float64 {
	points := make([][]float64, len(values))
	for i, v := range values {
		points[i] = []float64{v}
	}
	return points
}

func angles(thetas ...float64) [][]float64 {
	points := make([][]float64, len(thetas))
	for i, th := range thetas {
		points[i] = []float64{math.Cos(th), math.Sin(th)}
	}
	return points
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// samePartition reports whether two labelings agree up to a renaming of labels.
func samePartition(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	forward := make(map[int]int)
	backward := make(map[int]int)
	for i := range a {
		if (a[i] < 0) != (b[i] < 0) {
			return false
		}
		if a[i] < 0 {
			continue
		}
		if v, ok := forward[a[i]]; ok && v != b[i] {
			return false
		}
		if v, ok := backward[b[i]]; ok && v != a[i] {
			return false
		}
		forward[a[i]] = b[i]
		backward[b[i]] = a[i]
	}
	return true
}

// permutePoints returns points reordered so that out[i] = points[perm[i]].
func permutePoints(points [][]float64, perm []int) [][]float64 {
	out := make([][]float64, len(perm))
	for i, p := range perm {
		out[i] = points[p]
	}
	return out
}

// restoreLabels maps labels of permuted points back to the original positions.
func restoreLabels(labels, perm []int) []int {
	out := make([]int, len(perm))
	for i, p := range perm {
		out[p] = labels[i]
	}
	return out
}

func newTestClusterer(t *testing.T, mcs int) *HDBSCANClusterer {
	t.Helper()
	cfg := DefaultTimeHDBSCANConfig()
	cfg.MinClusterSize = mcs
	h, err := NewHDBSCANClusterer(cfg)
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}
	return h
}

func TestHDBSCAN_TwoGroupsOnALine(t *testing.T) {
	h := newTestClusterer(t, 2)

	result, err := h.Fit(line(0, 1, 2, 10, 11, 12))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	want := []int{0, 0, 0, 1, 1, 1}
	if !equalInts(result.Labels, want) {
		t.Errorf("labels = %v, want %v", result.Labels, want)
	}
	if result.NumClusters != 2 || result.NoiseCount != 0 {
		t.Errorf("clusters=%d noise=%d, want 2 and 0", result.NumClusters, result.NoiseCount)
	}
	if !equalInts(result.Sizes, []int{3, 3}) {
		t.Errorf("sizes = %v, want [3 3]", result.Sizes)
	}
	for label, s := range result.Stabilities {
		if math.Abs(s-2.625) > 1e-9 {
			t.Errorf("stability[%d] = %g, want 2.625", label, s)
		}
	}
}

func TestHDBSCAN_NoClusterReachesMinSize(t *testing.T) {
	cfg := DefaultHDBSCANConfig()
	h, err := NewHDBSCANClusterer(cfg)
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}

	// Two tight groups of three and two plus one outlier, min_cluster_size 5
	points := angles(0, 0.01, 0.02, 1.0, 1.01, 2.5)
	result, err := h.Fit(points)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for i, l := range result.Labels {
		if l != -1 {
			t.Errorf("label[%d] = %d, want noise", i, l)
		}
	}
	if result.NumClusters != 0 || result.NoiseCount != 6 {
		t.Errorf("clusters=%d noise=%d, want 0 and 6", result.NumClusters, result.NoiseCount)
	}
}

func TestHDBSCAN_TwoGroupsOfThreeAndOutlierAreNoise(t *testing.T) {
	h, err := NewHDBSCANClusterer(DefaultHDBSCANConfig())
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}

	result, err := h.Fit(angles(0, 0.01, 0.02, 1.0, 1.01, 1.02, 2.5))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !equalInts(result.Labels, []int{-1, -1, -1, -1, -1, -1, -1}) {
		t.Errorf("labels = %v, want all noise", result.Labels)
	}
	if result.NumClusters != 0 || result.NoiseCount != 7 {
		t.Errorf("clusters=%d noise=%d, want 0 and 7", result.NumClusters, result.NoiseCount)
	}
}

func TestHDBSCAN_ClustersRespectMinClusterSize(t *testing.T) {
	points := line(0, 0.5, 1, 1.5, 9, 9.2, 9.4, 20, 20.1, 35, 50, 50.3, 50.6, 50.9, 51.2)
	for _, mcs := range []int{2, 3, 4, 5} {
		h := newTestClusterer(t, mcs)
		result, err := h.Fit(points)
		if err != nil {
			t.Fatalf("mcs=%d: Fit failed: %v", mcs, err)
		}
		for label, size := range result.Sizes {
			if size < mcs {
				t.Errorf("mcs=%d: cluster %d has %d members", mcs, label, size)
			}
		}
		seen := make(map[int]bool)
		for _, l := range result.Labels {
			if l >= 0 {
				seen[l] = true
			}
		}
		for l := 0; l < result.NumClusters; l++ {
			if !seen[l] {
				t.Errorf("mcs=%d: label %d unused, labels not contiguous: %v", mcs, l, result.Labels)
			}
		}
	}
}

func TestHDBSCAN_Deterministic(t *testing.T) {
	points := angles(0, 0.02, 0.04, 0.06, 0.08, 1.5, 1.52, 1.54, 1.56, 1.58, 3.5)
	h, err := NewHDBSCANClusterer(DefaultHDBSCANConfig())
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}

	first, err := h.Fit(points)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := h.Fit(points)
		if err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		if !equalInts(first.Labels, again.Labels) {
			t.Fatalf("run %d labels = %v, first run %v", run, again.Labels, first.Labels)
		}
	}
	if first.NumClusters != 2 {
		t.Errorf("expected 2 clusters, got %d (%v)", first.NumClusters, first.Labels)
	}
	if first.Labels[10] != -1 {
		t.Errorf("outlier labelled %d, want noise", first.Labels[10])
	}
}

func TestHDBSCAN_PermutationInvariance(t *testing.T) {
	values := []float64{0, 1, 2, 10, 11, 12, 30, 31, 32.5}
	perm := []int{4, 8, 0, 6, 2, 7, 1, 5, 3}

	permuted := make([]float64, len(values))
	for i, p := range perm {
		permuted[i] = values[p]
	}

	h := newTestClusterer(t, 3)
	base, err := h.Fit(line(values...))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	shuffled, err := h.Fit(line(permuted...))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Map shuffled labels back to original positions
	restored := make([]int, len(values))
	for i, p := range perm {
		restored[p] = shuffled.Labels[i]
	}
	if !samePartition(base.Labels, restored) {
		t.Errorf("partitions differ: base %v, permuted %v", base.Labels, restored)
	}
}

func TestHDBSCAN_PermutationInvarianceWithTies(t *testing.T) {
	// Duplicate values and equal gaps, as in second-resolution timestamps
	values := []float64{2, 7, 2, 6, 2, 2, 0, 6, 4, 0, 5, 5, 4}
	points := line(values...)

	sorted := make([]int, len(values))
	reversed := make([]int, len(values))
	for i := range values {
		sorted[i] = i
		reversed[i] = len(values) - 1 - i
	}
	sort.SliceStable(sorted, func(a, b int) bool { return values[sorted[a]] < values[sorted[b]] })

	h := newTestClusterer(t, 2)
	base, err := h.Fit(points)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Every stack of equal values is a cluster; 7 falls out next to the 6s
	want := []int{1, -1, 1, 4, 1, 1, 0, 4, 2, 0, 3, 3, 2}
	if !samePartition(base.Labels, want) {
		t.Errorf("labels = %v, want partition %v", base.Labels, want)
	}

	for name, perm := range map[string][]int{"sorted": sorted, "reversed": reversed} {
		shuffled, err := h.Fit(permutePoints(points, perm))
		if err != nil {
			t.Fatalf("%s: Fit failed: %v", name, err)
		}
		if restored := restoreLabels(shuffled.Labels, perm); !samePartition(base.Labels, restored) {
			t.Errorf("%s: partitions differ: base %v, permuted %v", name, base.Labels, restored)
		}
	}
}

func TestHDBSCAN_PermutationInvarianceWithMinSamples(t *testing.T) {
	// Two 3x3 integer grids, one point near the first grid and one far away.
	// With min_samples 3 many reachability weights tie.
	var points [][]float64
	for _, x0 := range []float64{0, 10} {
		for x := 0.0; x < 3; x++ {
			for y := 0.0; y < 3; y++ {
				points = append(points, []float64{x0 + x, y})
			}
		}
	}
	points = append(points, []float64{5, 8}, []float64{20, 20})

	cfg := DefaultTimeHDBSCANConfig()
	cfg.MinClusterSize = 3
	cfg.MinSamples = 3
	h, err := NewHDBSCANClusterer(cfg)
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}

	base, err := h.Fit(points)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	want := []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, -1}
	if !samePartition(base.Labels, want) {
		t.Errorf("labels = %v, want partition %v", base.Labels, want)
	}

	n := len(points)
	perms := map[string][]int{}
	for _, stride := range []int{3, 7, 13} {
		perm := make([]int, n)
		for i := range perm {
			perm[i] = (i * stride) % n
		}
		perms[fmt.Sprintf("stride %d", stride)] = perm
	}
	reversed := make([]int, n)
	for i := range reversed {
		reversed[i] = n - 1 - i
	}
	perms["reversed"] = reversed

	for name, perm := range perms {
		shuffled, err := h.Fit(permutePoints(points, perm))
		if err != nil {
			t.Fatalf("%s: Fit failed: %v", name, err)
		}
		if restored := restoreLabels(shuffled.Labels, perm); !samePartition(base.Labels, restored) {
			t.Errorf("%s: partitions differ: base %v, permuted %v", name, base.Labels, restored)
		}
	}
}

func TestHDBSCAN_MinSamplesZeroUsesRawDistances(t *testing.T) {
	cfg := DefaultTimeHDBSCANConfig()
	cfg.MinSamples = 0
	h, err := NewHDBSCANClusterer(cfg)
	if err != nil {
		t.Fatalf("min_samples 0 rejected: %v", err)
	}

	result, err := h.Fit(line(0, 1, 2, 10, 11, 12))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !equalInts(result.Labels, []int{0, 0, 0, 1, 1, 1}) {
		t.Errorf("labels = %v, want two groups", result.Labels)
	}
}

func TestHDBSCAN_IdenticalPoints(t *testing.T) {
	// allow_single_cluster is off; coinciding points still form one cluster
	h := newTestClusterer(t, 3)
	if h.config.AllowSingleCluster {
		t.Fatal("expected allow_single_cluster off by default")
	}

	result, err := h.Fit(line(7, 7, 7, 7))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !equalInts(result.Labels, []int{0, 0, 0, 0}) {
		t.Errorf("labels = %v, want one cluster", result.Labels)
	}

	h = newTestClusterer(t, 5)
	result, err = h.Fit(line(7, 7, 7, 7))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !equalInts(result.Labels, []int{-1, -1, -1, -1}) {
		t.Errorf("labels = %v, want all noise below min_cluster_size", result.Labels)
	}
}

func TestHDBSCAN_DuplicatePointsStayFinite(t *testing.T) {
	h := newTestClusterer(t, 2)
	result, err := h.Fit(line(0, 0, 0, 5, 5, 5))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !samePartition(result.Labels, []int{0, 0, 0, 1, 1, 1}) {
		t.Errorf("labels = %v, want the two stacks", result.Labels)
	}
	for label, s := range result.Stabilities {
		if math.IsNaN(s) {
			t.Errorf("stability[%d] is NaN", label)
		}
	}
}

func TestHDBSCAN_SmallInputs(t *testing.T) {
	h := newTestClusterer(t, 2)

	result, err := h.Fit(nil)
	if err != nil {
		t.Fatalf("Fit(nil) failed: %v", err)
	}
	if len(result.Labels) != 0 {
		t.Errorf("expected no labels, got %v", result.Labels)
	}

	result, err = h.Fit(line(3))
	if err != nil {
		t.Fatalf("Fit(single) failed: %v", err)
	}
	if !equalInts(result.Labels, []int{-1}) {
		t.Errorf("single point labels = %v, want noise", result.Labels)
	}
}

func TestHDBSCAN_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(c *HDBSCANConfig)
	}{
		{"zero min cluster size", func(c *HDBSCANConfig) { c.MinClusterSize = 0 }},
		{"negative min samples", func(c *HDBSCANConfig) { c.MinSamples = -1 }},
		{"unknown metric", func(c *HDBSCANConfig) { c.Metric = "chebyshev" }},
		{"unknown selection", func(c *HDBSCANConfig) { c.SelectionMethod = "leaf" }},
		{"negative epsilon", func(c *HDBSCANConfig) { c.SelectionEpsilon = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultHDBSCANConfig()
			tt.cfg(&cfg)
			_, err := NewHDBSCANClusterer(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestHDBSCAN_InvalidPoints(t *testing.T) {
	h := newTestClusterer(t, 2)

	if _, err := h.Fit([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ragged input: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := h.Fit([][]float64{{1}, {math.NaN()}}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NaN input: expected ErrInvalidConfig, got %v", err)
	}
}

func TestHDBSCAN_EpsilonSelectionMergesFineClusters(t *testing.T) {
	points := line(0, 1, 4, 5, 100, 101, 104, 105)

	cfg := DefaultTimeHDBSCANConfig()
	h, err := NewHDBSCANClusterer(cfg)
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}
	eom, err := h.Fit(points)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if eom.NumClusters != 4 {
		t.Errorf("excess of mass: expected 4 pair clusters, got %d (%v)", eom.NumClusters, eom.Labels)
	}

	cfg.SelectionMethod = SelectionEpsilon
	cfg.SelectionEpsilon = 5
	h, err = NewHDBSCANClusterer(cfg)
	if err != nil {
		t.Fatalf("NewHDBSCANClusterer failed: %v", err)
	}
	eps, err := h.Fit(points)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	want := []int{0, 0, 0, 0, 1, 1, 1, 1}
	if !equalInts(eps.Labels, want) {
		t.Errorf("epsilon labels = %v, want %v", eps.Labels, want)
	}
}
