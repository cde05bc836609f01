package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"

	"watchtrail/internal/logger"
	"watchtrail/internal/retry"
)

const (
	// DefaultEmbeddingModel is the default model for generating embeddings
	DefaultEmbeddingModel = "text-embedding-004"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka)
	DefaultEmbeddingDimensions = int32(768)
	// maxBatch is the Gemini limit on contents per embedding request
	maxBatch = 100
)

// contentEmbedder is the slice of the genai Models service the client uses
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Options configures the Gemini embedding client
type Options struct {
	APIKey     string
	Model      string
	Dimensions int32
	Timeout    time.Duration
	MaxRetries int
}

// Client generates text embeddings with Gemini
type Client struct {
	modelName  string
	dimensions int32
	models     contentEmbedder
	retry      retry.Config
}

// NewClient creates a new Gemini embedding client
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or embedding.api_key in config file")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newClient(gClient.Models, opts), nil
}

func newClient(models contentEmbedder, opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dims := opts.Dimensions
	if dims <= 0 {
		dims = DefaultEmbeddingDimensions
	}
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = opts.MaxRetries

	return &Client{
		modelName:  model,
		dimensions: dims,
		models:     models,
		retry:      cfg,
	}
}

// Model returns the embedding model name
func (c *Client) Model() string {
	return c.modelName
}

// EmbedTexts embeds texts, at most maxBatch per request.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}
	}

	dims := c.dimensions
	config := &genai.EmbedContentConfig{
		TaskType:             "CLUSTERING",
		OutputDimensionality: &dims,
	}

	opts := retry.Options{
		Config:       c.retry,
		ErrorChecker: retryableAPIError,
		Logger:       logger.Get(),
		Operation:    "gemini embed",
	}
	resp, err := retry.Do(ctx, opts, func(int) (*genai.EmbedContentResponse, error) {
		return c.models.EmbedContent(ctx, c.modelName, contents, config)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", got, len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned for text %d", i)
		}
		// Convert float32 to float64
		v := make([]float64, len(emb.Values))
		for j, val := range emb.Values {
			v[j] = float64(val)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// retryableAPIError retries rate limits, server errors and transport failures
func retryableAPIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}
