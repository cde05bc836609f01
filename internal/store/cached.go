package store

import (
	"context"
	"fmt"
	"log/slog"

	"watchtrail/internal/embedding"
	"watchtrail/internal/logger"
)

// CachedEmbedder serves repeated texts from the store and forwards misses to the wrapped embedder
type CachedEmbedder struct {
	inner embedding.Embedder
	store *Store
	log   *slog.Logger

	hits   int
	misses int
}

// NewCachedEmbedder wraps inner with a read-through cache backed by s
func NewCachedEmbedder(inner embedding.Embedder, s *Store) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: s, log: logger.Get()}
}

// Model returns the wrapped embedder's model name
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Stats returns cache hits and misses since creation
func (c *CachedEmbedder) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// EmbedTexts returns one vector per text, embedding only the texts not yet cached
func (c *CachedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	model := c.inner.Model()

	out, err := c.store.GetEmbeddings(model, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup: %w", err)
	}

	// Unique missing texts, so duplicates in history are embedded once
	var missing []string
	positions := make(map[string][]int)
	for i, v := range out {
		if v != nil {
			continue
		}
		if _, seen := positions[texts[i]]; !seen {
			missing = append(missing, texts[i])
		}
		positions[texts[i]] = append(positions[texts[i]], i)
	}

	c.hits += len(texts) - countPositions(positions)
	c.misses += len(missing)

	if len(missing) > 0 {
		vectors, err := c.inner.EmbedTexts(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missing))
		}
		for j, text := range missing {
			for _, i := range positions[text] {
				out[i] = vectors[j]
			}
		}
		if err := c.store.PutEmbeddings(model, missing, vectors); err != nil {
			// The vectors are still usable for this run
			c.log.Warn("Failed to cache embeddings", "error", err, "count", len(missing))
		}
	}

	c.log.Info("Embeddings resolved",
		"model", model,
		"total", len(texts),
		"cached", len(texts)-countPositions(positions),
		"embedded", len(missing))

	return out, nil
}

func countPositions(positions map[string][]int) int {
	n := 0
	for _, p := range positions {
		n += len(p)
	}
	return n
}
