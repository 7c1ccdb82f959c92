// Package openai implements the embedding provider contract over any
// OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/metrics"
)

// Embedder is an embedding provider backed by an OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	name       string
	retries    uint
	timeout    time.Duration
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	Name       string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Retries    int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retries := uint(3)
	if cfg.Retries > 0 {
		retries = uint(cfg.Retries)
	}
	timeout := 5 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		name:       cfg.Name,
		retries:    retries,
		timeout:    timeout,
		logger:     cfg.Logger,
	}
}

// Name returns the configured provider name recorded on search responses.
func (e *Embedder) Name() string { return e.name }

// Embed returns the embedding vector for one text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input text, in input order. The call is
// retried with backoff; a timeout bounds each attempt so a hung provider
// cannot stall the caller.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := retry.DoWithData(
		func() (openai.EmbeddingResponse, error) {
			attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()
			return e.client.CreateEmbeddings(attemptCtx, req)
		},
		retry.Context(ctx),
		retry.Attempts(e.retries),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)

	duration := time.Since(start)
	model := string(e.model)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.name, model, "error").Inc()
		return nil, parseAPIError(e.name, err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.name, model, "error").Inc()
		return nil, fmt.Errorf("provider %s returned %d embeddings for %d inputs: %w",
			e.name, len(resp.Data), len(texts), domain.ErrEmbeddingUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.name, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.name, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(e.name, model).Add(float64(resp.Usage.TotalTokens))
	}

	vecs := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("provider %s returned out-of-range index %d: %w",
				e.name, d.Index, domain.ErrEmbeddingUnavailable)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors wrap domain.ErrEmbeddingUnavailable for upstream degradation logic.
func parseAPIError(provider string, err error) error {
	wrap := domain.ErrEmbeddingUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("provider %s: API error %d: %s: %w",
			provider, reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider %s: API error %d: %s: %w",
			provider, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("provider %s: embedding request failed: %v: %w", provider, err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
