// Package embedding selects among configured embedding providers by
// availability. Providers are ordered by priority; the first one that serves
// a request wins, and its name is recorded on the response.
package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plateshare/searchd/internal/domain"
)

// Provider is one embedding backend.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	HealthCheck(ctx context.Context) error
}

// Chain tries providers in priority order until one serves the request.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain creates a provider chain. The slice order is the priority order.
func NewChain(providers []Provider, logger *zap.Logger) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Embed returns the vector for one text and the name of the provider that
// produced it. A provider failure falls through to the next provider; only
// when every provider failed does the error surface.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, string, error) {
	var lastErr error
	for _, p := range c.providers {
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, p.Name(), nil
		}
		lastErr = err
		c.logger.Warn("embedding provider failed, trying next",
			zap.String("provider", p.Name()), zap.Error(err))
	}
	if lastErr == nil {
		lastErr = domain.ErrEmbeddingUnavailable
	}
	return nil, "", fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// EmbedBatch behaves like Embed for a batch of texts.
func (c *Chain) EmbedBatch(ctx context.Context, texts []string) ([][]float32, string, error) {
	var lastErr error
	for _, p := range c.providers {
		vecs, err := p.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, p.Name(), nil
		}
		lastErr = err
		c.logger.Warn("embedding provider failed, trying next",
			zap.String("provider", p.Name()), zap.Error(err))
	}
	if lastErr == nil {
		lastErr = domain.ErrEmbeddingUnavailable
	}
	return nil, "", fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// Status is one provider's availability snapshot.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
}

// Statuses health-checks every configured provider.
func (c *Chain) Statuses(ctx context.Context) []Status {
	out := make([]Status, len(c.providers))
	for i, p := range c.providers {
		out[i] = Status{Name: p.Name(), Healthy: p.HealthCheck(ctx) == nil}
	}
	return out
}
