package pipeline

import (
	"context"

	"watchtrail/internal/core"
)

// RecordLoader reads watch records from a Takeout export or a records file
type RecordLoader interface {
	// LoadRecords reads every record from path, HTML or JSON
	LoadRecords(path string) ([]core.WatchRecord, error)
}

// EmbeddingGenerator creates vector embeddings for text
type EmbeddingGenerator interface {
	// EmbedTexts returns one vector per text, in input order
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)

	// Model names the embedding model, for logs and cache keys
	Model() string
}

// CacheReporter is implemented by embedders that serve repeated texts from a cache
type CacheReporter interface {
	// Stats returns cache hits and misses since creation
	Stats() (hits, misses int)
}

// ObservationClusterer assigns content, time and composite labels in place
type ObservationClusterer interface {
	Run(ctx context.Context, observations []core.Observation) (*core.RunSummary, error)
}

// ResultWriter persists clustered records
type ResultWriter interface {
	// WriteResults writes records to outputPath and returns the path written
	WriteResults(records []core.ClusteredRecord, outputPath string) (string, error)
}
