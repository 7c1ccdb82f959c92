package search

import (
	"context"

	"github.com/plateshare/searchd/internal/domain/listing"
	"github.com/plateshare/searchd/internal/domain/search/filter"
	"github.com/plateshare/searchd/internal/domain/search/mode"
	"github.com/plateshare/searchd/internal/domain/search/result"
	"github.com/plateshare/searchd/internal/vector"
)

// VectorIndex is the nearest-neighbor query contract.
type VectorIndex interface {
	Query(ctx context.Context, vec []float32, topK int, f filter.Filters) ([]vector.Match, error)
}

// Catalog is the lexical retrieval contract against the listings table.
type Catalog interface {
	FullTextSearch(ctx context.Context, query string, f filter.Filters, limit, offset int) ([]listing.Listing, int64, error)
	SubstringSearch(ctx context.Context, query string, f filter.Filters, limit, offset int) ([]listing.Listing, int64, error)
}

// Embedder vectorizes query text and reports which provider served.
type Embedder interface {
	Embed(ctx context.Context, text string) (vec []float32, provider string, err error)
}

// Response is the full search response payload. It is what gets cached, so
// it carries everything needed to answer an identical request.
type Response struct {
	Results  []result.Item `json:"results"`
	Total    int           `json:"total"`
	Mode     mode.Mode     `json:"mode"`
	TookMS   int64         `json:"took_ms"`
	Provider string        `json:"provider,omitempty"`
	Cached   bool          `json:"cached"`
	Degraded bool          `json:"degraded,omitempty"`
}
