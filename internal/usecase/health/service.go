// Package health aggregates dependency availability into one status signal.
package health

import (
	"context"

	"github.com/plateshare/searchd/internal/usecase/embedding"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates some embedding providers are down but search still works.
	Degraded Status = "degraded"
	// Unhealthy indicates the vector store is unreachable or no provider is healthy.
	Unhealthy Status = "unhealthy"
)

// VectorPinger checks vector store availability.
type VectorPinger interface {
	Ping(ctx context.Context) error
}

// CatalogPinger checks catalog database availability.
type CatalogPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker reports embedding provider availability.
type ProviderChecker interface {
	Statuses(ctx context.Context) []embedding.Status
}

// Report is the health endpoint payload.
type Report struct {
	Status    Status             `json:"status"`
	Vector    bool               `json:"vector_store"`
	Catalog   bool               `json:"catalog"`
	Providers []embedding.Status `json:"embedding_providers"`
}

// Service coordinates health checks.
type Service struct {
	vector    VectorPinger
	catalog   CatalogPinger
	providers ProviderChecker
}

// New creates a health service.
func New(vector VectorPinger, catalog CatalogPinger, providers ProviderChecker) *Service {
	return &Service{vector: vector, catalog: catalog, providers: providers}
}

// Check probes every dependency. Unhealthy when the vector store is
// unreachable or no embedding provider answers; degraded when only some
// providers are down. Pure aggregation, no side effects.
func (s *Service) Check(ctx context.Context) Report {
	report := Report{
		Vector:    s.vector.Ping(ctx) == nil,
		Catalog:   s.catalog.Ping(ctx) == nil,
		Providers: s.providers.Statuses(ctx),
	}

	healthyProviders := 0
	for _, p := range report.Providers {
		if p.Healthy {
			healthyProviders++
		}
	}

	switch {
	case !report.Vector || !report.Catalog || healthyProviders == 0:
		report.Status = Unhealthy
	case healthyProviders < len(report.Providers):
		report.Status = Degraded
	default:
		report.Status = Healthy
	}
	return report
}
