package index

import (
	"context"

	"github.com/plateshare/searchd/internal/domain/listing"
	"github.com/plateshare/searchd/internal/vector"
)

// VectorStore is the index mutation contract. Upsert and Delete are
// idempotent by id, which keeps concurrent webhook deliveries safe.
type VectorStore interface {
	Upsert(ctx context.Context, rec vector.Record) error
	UpsertBatch(ctx context.Context, recs []vector.Record) error
	Delete(ctx context.Context, ids []string) error
}

// Catalog sources the rows to embed.
type Catalog interface {
	FetchByID(ctx context.Context, id int64) (listing.Listing, error)
	FetchByIDs(ctx context.Context, ids []int64) ([]listing.Listing, error)
	FetchWindow(ctx context.Context, limit, offset int, includeInactive bool) ([]listing.Listing, error)
}

// Embedder vectorizes listing text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, string, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, string, error)
}
