package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"watchtrail/internal/clustering"
	"watchtrail/internal/core"
	"watchtrail/internal/embedding"
	"watchtrail/internal/logger"
	"watchtrail/internal/parser"
)

// Pipeline runs load → embed → two-stage clustering → write
type Pipeline struct {
	loader    RecordLoader
	embedder  EmbeddingGenerator
	clusterer ObservationClusterer
	writer    ResultWriter
	closers   []io.Closer

	config *Config
	log    *slog.Logger
}

// Config holds pipeline configuration
type Config struct {
	// Silhouette settings. The score is a quality hint and never changes labels.
	Silhouette          bool
	SilhouetteMetric    clustering.Metric
	SilhouetteNormalize bool
	MaxSilhouettePoints int // Above this the O(n²) distance matrix is skipped
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Silhouette:          true,
		SilhouetteMetric:    clustering.MetricEuclidean,
		SilhouetteNormalize: true,
		MaxSilhouettePoints: 5000,
	}
}

// NewPipeline creates a new pipeline with all dependencies
func NewPipeline(
	loader RecordLoader,
	embedder EmbeddingGenerator,
	clusterer ObservationClusterer,
	writer ResultWriter,
	config *Config,
) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}

	return &Pipeline{
		loader:    loader,
		embedder:  embedder,
		clusterer: clusterer,
		writer:    writer,
		config:    config,
		log:       logger.Get(),
	}
}

// Close releases resources owned by the pipeline, such as the embedding cache
func (p *Pipeline) Close() error {
	var errs []string
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close pipeline: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RunOptions configures a clustering run
type RunOptions struct {
	InputFile  string
	OutputPath string
	DryRun     bool // Cluster but do not write
}

// RunResult contains the output of a clustering run
type RunResult struct {
	Records    []core.ClusteredRecord
	Summary    *core.RunSummary
	OutputPath string
	Stats      ProcessingStats
}

// ProcessingStats tracks pipeline execution metrics
type ProcessingStats struct {
	TotalRecords     int
	MissingText      int
	MissingTimestamp int
	EmbeddingModel   string
	CacheHits        int
	CacheMisses      int
	EmbedTime        time.Duration
	ClusterTime      time.Duration
	ProcessingTime   time.Duration
	StartTime        time.Time
	EndTime          time.Time
}

// Run executes the full pipeline over an input file
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	records, err := p.loader.LoadRecords(opts.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	p.log.Info("Loaded watch records", "file", opts.InputFile, "count", len(records))

	result, err := p.Cluster(ctx, records)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		p.log.Info("Dry run, skipping output")
		return result, nil
	}

	path, err := p.writer.WriteResults(result.Records, opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}
	result.OutputPath = path
	p.log.Info("Saved clustered records", "path", path, "count", len(result.Records))

	return result, nil
}

// Cluster embeds and clusters records already in memory
func (p *Pipeline) Cluster(ctx context.Context, records []core.WatchRecord) (*RunResult, error) {
	stats := ProcessingStats{
		StartTime:      time.Now(),
		TotalRecords:   len(records),
		EmbeddingModel: p.embedder.Model(),
	}

	observations := BuildObservations(records, &stats)
	if stats.MissingText > 0 || stats.MissingTimestamp > 0 {
		p.log.Warn("Incomplete watch records",
			"missing_text", stats.MissingText,
			"missing_timestamp", stats.MissingTimestamp,
			"total", len(records))
	}

	if len(observations) > 0 {
		embedStart := time.Now()
		reporter, cached := p.embedder.(CacheReporter)
		var hits, misses int
		if cached {
			hits, misses = reporter.Stats()
		}
		if err := p.embed(ctx, observations); err != nil {
			return nil, err
		}
		stats.EmbedTime = time.Since(embedStart)
		if cached {
			h, m := reporter.Stats()
			stats.CacheHits, stats.CacheMisses = h-hits, m-misses
		}
	}

	clusterStart := time.Now()
	summary, err := p.clusterer.Run(ctx, observations)
	if err != nil {
		return nil, fmt.Errorf("failed to cluster records: %w", err)
	}
	stats.ClusterTime = time.Since(clusterStart)

	if p.config.Silhouette {
		p.scoreContent(observations, summary)
	}

	out := make([]core.ClusteredRecord, len(records))
	for i := range records {
		out[i] = core.ClusteredRecord{WatchRecord: records[i], Observation: observations[i]}
	}

	stats.EndTime = time.Now()
	stats.ProcessingTime = stats.EndTime.Sub(stats.StartTime)

	return &RunResult{Records: out, Summary: summary, Stats: stats}, nil
}

// BuildObservations derives the text and time value of every record.
// Missing text becomes "" and unparseable timestamps become 0; stats counts both.
func BuildObservations(records []core.WatchRecord, stats *ProcessingStats) []core.Observation {
	observations := make([]core.Observation, len(records))
	for i, rec := range records {
		text := parser.CorpusText(rec)
		if strings.TrimSpace(text) == "" && stats != nil {
			stats.MissingText++
		}
		tv := parser.ParseTimestamp(rec.Timestamp)
		if tv == 0 && stats != nil {
			stats.MissingTimestamp++
		}
		observations[i] = core.Observation{
			Index:          i,
			Text:           text,
			TimeValue:      tv,
			ClusterContent: core.NoiseLabel,
			ClusterTime:    core.NoiseLabel,
			Combined:       core.NoiseComposite,
		}
	}
	return observations
}

func (p *Pipeline) embed(ctx context.Context, observations []core.Observation) error {
	texts := make([]string, len(observations))
	for i, obs := range observations {
		texts[i] = obs.Text
	}

	vectors, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if err := embedding.CheckDimensions(vectors); err != nil {
		return err
	}

	for i := range observations {
		observations[i].ContentVector = vectors[i]
	}
	p.log.Info("Generated embeddings", "model", p.embedder.Model(), "count", len(vectors), "dimensions", len(vectors[0]))
	return nil
}

// scoreContent records the stage 1 silhouette in summary. Failures only log.
func (p *Pipeline) scoreContent(observations []core.Observation, summary *core.RunSummary) {
	if summary.Content.Clusters < 2 {
		return
	}
	clustered := summary.Content.Points - summary.Content.Noise
	if p.config.MaxSilhouettePoints > 0 && clustered > p.config.MaxSilhouettePoints {
		p.log.Info("Skipping silhouette analysis", "clustered", clustered, "limit", p.config.MaxSilhouettePoints)
		return
	}

	// Noise never contributes, so score only clustered points
	var vectors [][]float64
	var labels []int
	for _, obs := range observations {
		if obs.ClusterContent == core.NoiseLabel {
			continue
		}
		vectors = append(vectors, obs.ContentVector)
		labels = append(labels, obs.ClusterContent)
	}
	if p.config.SilhouetteNormalize {
		vectors = clustering.NormalizeRows(vectors)
	}

	analysis, err := clustering.AnalyzeSilhouette(vectors, labels, p.config.SilhouetteMetric)
	if err != nil {
		p.log.Warn("Silhouette analysis failed", "error", err)
		return
	}
	summary.Silhouette = analysis.OverallScore
	p.log.Info("Content cluster quality",
		"silhouette", analysis.OverallScore,
		"quality", analysis.Quality,
		"clusters", analysis.NumClusters)
}
