package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"watchtrail/internal/logger"
)

// Embedder maps texts to feature vectors, one per text and in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
	Model() string
}

// Batched splits large inputs into fixed-size requests to the wrapped embedder
type Batched struct {
	inner Embedder
	size  int
	log   *slog.Logger
}

// NewBatched wraps inner so that no single request carries more than size texts
func NewBatched(inner Embedder, size int) *Batched {
	if size < 1 {
		size = 1
	}
	return &Batched{inner: inner, size: size, log: logger.Get()}
}

// Model returns the wrapped embedder's model name
func (b *Batched) Model() string {
	return b.inner.Model()
}

// EmbedTexts embeds texts batch by batch and checks every batch is complete
func (b *Batched) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+b.size, len(texts))

		vectors, err := b.inner.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts", start, end, len(vectors), end-start)
		}
		out = append(out, vectors...)

		b.log.Debug("Embedded batch", "model", b.inner.Model(), "done", end, "total", len(texts))
	}

	if err := CheckDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckDimensions fails when vectors disagree on length or any vector is empty
func CheckDimensions(vectors [][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("empty embedding for text %d", i)
		}
		if len(v) != dim {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}
