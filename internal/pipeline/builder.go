package pipeline

import (
	"context"
	"fmt"
	"io"

	"watchtrail/internal/clustering"
	"watchtrail/internal/config"
	"watchtrail/internal/embedding"
	"watchtrail/internal/llm"
	"watchtrail/internal/store"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	appConfig  *config.Config
	config     *Config
	embedder   EmbeddingGenerator
	clustering *clustering.TwoStageConfig
	skipCache  bool
}

// NewBuilder creates a new pipeline builder from application configuration
func NewBuilder(appConfig *config.Config) *Builder {
	return &Builder{
		appConfig: appConfig,
		config:    DefaultConfig(),
		skipCache: !appConfig.Cache.Enabled,
	}
}

// WithEmbedder replaces the configured embedding provider
func (b *Builder) WithEmbedder(e EmbeddingGenerator) *Builder {
	b.embedder = e
	return b
}

// WithClustering overrides the clustering section of the application config
func (b *Builder) WithClustering(cfg clustering.TwoStageConfig) *Builder {
	b.clustering = &cfg
	return b
}

// WithConfig sets the pipeline configuration
func (b *Builder) WithConfig(config *Config) *Builder {
	b.config = config
	return b
}

// WithoutCache disables the embedding cache
func (b *Builder) WithoutCache() *Builder {
	b.skipCache = true
	return b
}

// Build constructs the pipeline with all components
func (b *Builder) Build(ctx context.Context) (*Pipeline, error) {
	var twoStage clustering.TwoStageConfig
	if b.clustering != nil {
		twoStage = *b.clustering
	} else {
		cfg, err := b.appConfig.ClusteringConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid clustering configuration: %w", err)
		}
		twoStage = cfg
	}

	clusterer, err := clustering.NewTwoStageClusterer(twoStage)
	if err != nil {
		return nil, fmt.Errorf("failed to create clusterer: %w", err)
	}

	embedder := b.embedder
	if embedder == nil {
		embedder, err = NewEmbedder(ctx, b.appConfig.Embedding)
		if err != nil {
			return nil, err
		}
	}

	var closers []io.Closer
	if !b.skipCache {
		cache, err := store.NewStore(b.appConfig.Cache.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
		embedder = store.NewCachedEmbedder(embedder, cache)
		closers = append(closers, cache)
	}

	p := NewPipeline(
		NewParserAdapter(),
		embedder,
		clusterer,
		NewJSONWriterAdapter(),
		b.config,
	)
	p.closers = closers
	return p, nil
}

// NewEmbedder creates the batched embedding client for the configured provider
func NewEmbedder(ctx context.Context, cfg config.Embedding) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Provider {
	case "gemini":
		client, err := llm.NewClient(ctx, llm.Options{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.TimeoutDuration(),
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedder: %w", err)
		}
		inner = client
	case "ollama":
		model := cfg.Model
		if model == llm.DefaultEmbeddingModel {
			// The Gemini default means nothing to Ollama
			model = ""
		}
		inner = embedding.NewOllamaClient(cfg.OllamaURL, model, cfg.TimeoutDuration(), cfg.MaxRetries)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	return embedding.NewBatched(inner, cfg.BatchSize), nil
}
