package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"watchtrail/internal/clustering"
	"watchtrail/internal/config"
	"watchtrail/internal/logger"
	"watchtrail/internal/pipeline"
	"watchtrail/internal/render"
)

// clusterFlags holds command-line overrides of the clustering configuration
type clusterFlags struct {
	output             string
	minClusterSize     int
	minSamples         int
	metric             string
	selection          string
	epsilon            float64
	allowSingleCluster bool
	timeMinClusterSize int
	timeMinSamples     int
	workers            int
	noCache            bool
	dryRun             bool
	top                int
}

// NewClusterCmd creates the cluster command
func NewClusterCmd() *cobra.Command {
	var f clusterFlags

	cmd := &cobra.Command{
		Use:   "cluster <records.json|watch-history.html>",
		Short: "Cluster watch history by content, then by time within each topic",
		Long: `Embed every record's "title channel" text, cluster the embeddings with
HDBSCAN, then cluster the timestamps inside every content cluster. The
output is the input records plus content_vector, cluster_content,
time_value, cluster_time and combined_cluster.

Embeddings are cached in SQLite, so re-running with different clustering
options does not call the embedding provider again.

Examples:
  # Cluster a Takeout export with the defaults
  watchtrail cluster watch-history.html

  # Coarser topics and an epsilon cut
  watchtrail cluster records.json --min-cluster-size 10 --selection epsilon --epsilon 0.3

  # Try options without writing output
  watchtrail cluster records.json --min-samples 3 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCluster(ctx, cmd, args[0], f)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "output file (default from config: data/watch_history_clustered.json)")
	fs.IntVar(&f.minClusterSize, "min-cluster-size", 0, "content stage min_cluster_size")
	fs.IntVar(&f.minSamples, "min-samples", 0, "content stage min_samples")
	fs.StringVar(&f.metric, "metric", "", "content stage distance metric: euclidean, cosine, manhattan")
	fs.StringVar(&f.selection, "selection", "", "content stage cluster selection: eom or epsilon")
	fs.Float64Var(&f.epsilon, "epsilon", 0, "content stage cluster_selection_epsilon")
	fs.BoolVar(&f.allowSingleCluster, "allow-single-cluster", false, "let the content stage return one cluster")
	fs.IntVar(&f.timeMinClusterSize, "time-min-cluster-size", 0, "time stage min_cluster_size")
	fs.IntVar(&f.timeMinSamples, "time-min-samples", 0, "time stage min_samples")
	fs.IntVar(&f.workers, "workers", 0, "concurrent time-stage groups (default NumCPU)")
	fs.BoolVar(&f.noCache, "no-cache", false, "skip the embedding cache")
	fs.BoolVar(&f.dryRun, "dry-run", false, "cluster but do not write output")
	fs.IntVar(&f.top, "top", 15, "clusters listed in the summary")

	return cmd
}

func runCluster(ctx context.Context, cmd *cobra.Command, input string, f clusterFlags) error {
	cfg := config.Get()
	if err := cfg.RequireEmbedding(); err != nil {
		return err
	}

	twoStage, err := cfg.ClusteringConfig()
	if err != nil {
		return fmt.Errorf("invalid clustering configuration: %w", err)
	}
	twoStage, err = applyClusterFlags(twoStage, cmd.Flags(), f)
	if err != nil {
		return err
	}

	builder := pipeline.NewBuilder(cfg).WithClustering(twoStage)
	if f.noCache {
		builder = builder.WithoutCache()
	}
	p, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error("Failed to close pipeline", err)
		}
	}()

	output := f.output
	if output == "" {
		output = cfg.Output.OutputPath()
	}

	result, err := p.Run(ctx, pipeline.RunOptions{
		InputFile:  input,
		OutputPath: output,
		DryRun:     f.dryRun,
	})
	if err != nil {
		return err
	}

	if !f.noCache && cfg.Cache.Enabled {
		logger.Info("Embedding cache",
			"hits", result.Stats.CacheHits,
			"misses", result.Stats.CacheMisses,
			"path", cfg.Cache.Directory)
	}

	groups := render.Summaries(render.BuildGroups(result.Records))
	fmt.Fprintln(cmd.OutOrStdout(), render.RenderSummary(result.Summary, groups, f.top))
	if result.OutputPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d records to %s (%s)\n",
			len(result.Records), result.OutputPath, result.Stats.ProcessingTime.Round(time.Millisecond))
	}
	return nil
}

// applyClusterFlags overrides cfg with every flag the user set explicitly
// and validates the result.
func applyClusterFlags(cfg clustering.TwoStageConfig, fs *pflag.FlagSet, f clusterFlags) (clustering.TwoStageConfig, error) {
	if fs.Changed("min-cluster-size") {
		cfg.Content.MinClusterSize = f.minClusterSize
	}
	if fs.Changed("min-samples") {
		cfg.Content.MinSamples = f.minSamples
	}
	if fs.Changed("metric") {
		cfg.Content.Metric = clustering.Metric(f.metric)
	}
	if fs.Changed("selection") {
		method, err := clustering.ParseSelectionMethod(f.selection)
		if err != nil {
			return cfg, err
		}
		cfg.Content.SelectionMethod = method
	}
	if fs.Changed("epsilon") {
		cfg.Content.SelectionEpsilon = f.epsilon
	}
	if fs.Changed("allow-single-cluster") {
		cfg.Content.AllowSingleCluster = f.allowSingleCluster
	}
	if fs.Changed("time-min-cluster-size") {
		cfg.Time.MinClusterSize = f.timeMinClusterSize
	}
	if fs.Changed("time-min-samples") {
		cfg.Time.MinSamples = f.timeMinSamples
	}
	if fs.Changed("workers") {
		cfg.Workers = f.workers
	}

	if err := cfg.Content.Validate(); err != nil {
		return cfg, fmt.Errorf("content stage: %w", err)
	}
	if err := cfg.Time.Validate(); err != nil {
		return cfg, fmt.Errorf("time stage: %w", err)
	}
	return cfg, nil
}
