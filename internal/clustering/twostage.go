package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"watchtrail/internal/core"
	"watchtrail/internal/logger"
)

// TwoStageConfig configures the content stage, the per-group time stage and
// the worker pool used for the time stage.
type TwoStageConfig struct {
	Content HDBSCANConfig
	Time    HDBSCANConfig
	Workers int // Concurrent time-stage groups, <= 0 means runtime.NumCPU()
}

// DefaultTwoStageConfig returns content and time defaults
func DefaultTwoStageConfig() TwoStageConfig {
	return TwoStageConfig{
		Content: DefaultHDBSCANConfig(),
		Time:    DefaultTimeHDBSCANConfig(),
	}
}

// TwoStageClusterer clusters observations by content, then clusters each
// content group by time. Each group's time clustering sees only that group's
// timestamps.
type TwoStageClusterer struct {
	content *HDBSCANClusterer
	time    *HDBSCANClusterer
	workers int
	log     *slog.Logger
}

// NewTwoStageClusterer validates both stage configurations
func NewTwoStageClusterer(config TwoStageConfig) (*TwoStageClusterer, error) {
	content, err := NewHDBSCANClusterer(config.Content)
	if err != nil {
		return nil, fmt.Errorf("content stage: %w", err)
	}
	timeStage, err := NewHDBSCANClusterer(config.Time)
	if err != nil {
		return nil, fmt.Errorf("time stage: %w", err)
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &TwoStageClusterer{
		content: content,
		time:    timeStage,
		workers: workers,
		log:     logger.Get(),
	}, nil
}

// Run labels every observation in place and returns a summary of both stages.
func (t *TwoStageClusterer) Run(ctx context.Context, observations []core.Observation) (*core.RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &core.RunSummary{RunID: uuid.NewString()}
	n := len(observations)
	if n == 0 {
		return summary, nil
	}

	vectors := make([][]float64, n)
	for i, obs := range observations {
		vectors[i] = obs.ContentVector
	}

	contentResult, err := t.content.Fit(vectors)
	if err != nil {
		return nil, fmt.Errorf("content clustering: %w", err)
	}
	contentLabels := contentResult.Labels

	summary.Content = core.StageSummary{
		Points:   n,
		Clusters: contentResult.NumClusters,
		Noise:    contentResult.NoiseCount,
	}
	t.log.Info("Stage 1 (content) clustering complete",
		"run_id", summary.RunID,
		"clusters", contentResult.NumClusters,
		"noise", contentResult.NoiseCount,
		"noise_pct", percent(contentResult.NoiseCount, n),
	)

	timeLabels, err := t.clusterGroups(ctx, contentLabels, observations)
	if err != nil {
		return nil, err
	}

	composites := make(map[core.CompositeLabel]struct{})
	for i := range observations {
		obs := &observations[i]
		obs.ClusterContent = contentLabels[i]
		obs.ClusterTime = timeLabels[i]
		obs.Combined = core.Combine(contentLabels[i], timeLabels[i])
		if obs.Combined.IsNoise() {
			if contentLabels[i] != core.NoiseLabel {
				summary.Time.Noise++
			}
			continue
		}
		composites[obs.Combined] = struct{}{}
	}

	summary.Groups = contentResult.NumClusters
	summary.Time.Points = n - contentResult.NoiseCount
	summary.Composite = len(composites)
	summary.Time.Clusters = len(composites)

	t.log.Info("Stage 2 (time) clustering complete",
		"run_id", summary.RunID,
		"groups", summary.Groups,
		"composite_clusters", summary.Composite,
		"time_noise", summary.Time.Noise,
	)

	return summary, nil
}

// clusterGroups runs the time stage once per content cluster on a bounded
// worker pool. Each task writes only the slots of its own members.
func (t *TwoStageClusterer) clusterGroups(ctx context.Context, contentLabels []int, observations []core.Observation) ([]int, error) {
	timeLabels := noiseLabels(len(contentLabels))
	groups := GroupByLabel(contentLabels)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)

	for label, members := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			times := make([]float64, len(members))
			for i, idx := range members {
				times[i] = observations[idx].TimeValue
			}

			labels, err := t.ClusterTimes(times)
			if err != nil {
				return fmt.Errorf("time clustering for content cluster %d: %w", label, err)
			}
			for i, idx := range members {
				timeLabels[idx] = labels[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return timeLabels, nil
}

// ClusterTimes standardizes one group's timestamps with that group's own
// statistics and clusters them. Groups of fewer than two members are not
// clustered; their members get time cluster 0.
func (t *TwoStageClusterer) ClusterTimes(times []float64) ([]int, error) {
	if len(times) < 2 {
		return make([]int, len(times)), nil
	}

	standardized := Standardize(times)
	points := make([][]float64, len(standardized))
	for i, v := range standardized {
		points[i] = []float64{v}
	}

	result, err := t.time.Fit(points)
	if err != nil {
		return nil, err
	}
	return result.Labels, nil
}

// GroupByLabel returns the member indices of every non-noise label, indexed by
// label. Members keep their input order.
func GroupByLabel(labels []int) [][]int {
	var groups [][]int
	for i, l := range labels {
		if l == core.NoiseLabel {
			continue
		}
		for len(groups) <= l {
			groups = append(groups, nil)
		}
		groups[l] = append(groups[l], i)
	}
	return groups
}

// CountLabels returns the distinct non-noise labels in ascending order
func CountLabels(labels []int) []int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if l != core.NoiseLabel {
			seen[l] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}
