package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"watchtrail/internal/logger"
	"watchtrail/internal/retry"
)

// OllamaClient handles embedding generation via a local Ollama server
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	retry   retry.Config
}

// NewOllamaClient creates a new Ollama embedding client
func NewOllamaClient(baseURL, model string, timeout time.Duration, retries int) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text" // good default, 768 dims
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = retries

	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		retry:   cfg,
	}
}

// SetRetryConfig replaces the backoff used for failed requests
func (c *OllamaClient) SetRetryConfig(cfg retry.Config) {
	c.retry = cfg
}

// Model returns the embedding model name
func (c *OllamaClient) Model() string {
	return c.model
}

// embedRequest is the Ollama /api/embed request format
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the Ollama /api/embed response format
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// statusError carries a non-200 response so the retry checker can inspect it
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama error (status %d): %s", e.status, e.body)
}

// EmbedTexts embeds every text in one request
func (c *OllamaClient) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	opts := retry.Options{
		Config:       c.retry,
		ErrorChecker: retryableStatus,
		Logger:       logger.Get(),
		Operation:    "ollama embed",
	}
	return retry.Do(ctx, opts, func(int) ([][]float64, error) {
		return c.post(ctx, jsonBody, len(texts))
	})
}

func (c *OllamaClient) post(ctx context.Context, body []byte, want int) ([][]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) != want {
		return nil, retry.Permanent(fmt.Errorf("ollama returned %d embeddings for %d texts", len(result.Embeddings), want))
	}
	return result.Embeddings, nil
}

// retryableStatus retries transport errors, rate limits and server errors
func retryableStatus(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return true
}
