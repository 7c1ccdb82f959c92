// Package index keeps the vector store synchronized with the listings
// catalog. The webhook path handles one mutated record; the batch path walks
// id lists or windows. Both converge on the same embed-and-upsert logic, so
// a record re-embeds identically regardless of which path touched it.
package index

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/plateshare/searchd/internal/config"
	domindex "github.com/plateshare/searchd/internal/domain/index"
	"github.com/plateshare/searchd/internal/domain/listing"
	logpkg "github.com/plateshare/searchd/internal/logger"
	"github.com/plateshare/searchd/internal/metrics"
	"github.com/plateshare/searchd/internal/vector"
)

// DefaultWindowLimit bounds a batch run when the caller gives no window.
const DefaultWindowLimit = 500

// Service implements both indexing entry points.
type Service struct {
	store   VectorStore
	catalog Catalog
	embed   Embedder
	cfg     config.EmbeddingConfig
	logger  *zap.Logger
}

// New creates an indexing service.
func New(store VectorStore, catalog Catalog, embed Embedder, cfg config.EmbeddingConfig, logger *zap.Logger) *Service {
	return &Service{store: store, catalog: catalog, embed: embed, cfg: cfg, logger: logger}
}

// log returns the request-scoped logger when the context carries one.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContext(ctx, s.logger)
}

// Change is one webhook delivery: a mutated catalog record and what happened
// to it.
type Change struct {
	Type    domindex.ChangeType
	Listing listing.Listing
}

// ApplyChange processes a single catalog mutation. Active, unarranged
// records are embedded and upserted; everything else is deleted from the
// vector store (covering soft-deletes, deactivation and claims). Failures
// are counted in the report, never raised: the webhook sender must see the
// outcome, not an error page.
func (s *Service) ApplyChange(ctx context.Context, ch Change) (report domindex.Report) {
	start := time.Now()
	defer func() { report.Finish(start) }()

	id := strconv.FormatInt(ch.Listing.ID, 10)

	if ch.Type == domindex.ChangeDelete || !ch.Listing.Indexable() {
		if err := s.store.Delete(ctx, []string{id}); err != nil {
			report.Failed++
			report.AddError(fmt.Sprintf("delete %s: %v", id, err))
			metrics.IndexedRecordsTotal.WithLabelValues("webhook", "failed").Inc()
			return report
		}
		report.Deleted++
		metrics.IndexedRecordsTotal.WithLabelValues("webhook", "deleted").Inc()
		return report
	}

	if err := s.indexOne(ctx, ch.Listing); err != nil {
		report.Failed++
		report.AddError(fmt.Sprintf("index %s: %v", id, err))
		metrics.IndexedRecordsTotal.WithLabelValues("webhook", "failed").Inc()
		return report
	}
	report.Indexed++
	metrics.IndexedRecordsTotal.WithLabelValues("webhook", "indexed").Inc()
	return report
}

func (s *Service) indexOne(ctx context.Context, l listing.Listing) error {
	vec, _, err := s.embed.Embed(ctx, l.EmbeddingText(s.cfg.MaxTextLen))
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := s.store.Upsert(ctx, vector.RecordFromListing(l, vec)); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// BatchParams selects what a batch run covers: an explicit id list, or a
// (limit, offset) window. Force widens the pass to inactive rows, which get
// deleted from the vector store.
type BatchParams struct {
	IDs    []int64
	Limit  int
	Offset int
	Force  bool
}

// Reindex embeds and upserts matching catalog rows in fixed-size batches.
// Each batch fails independently: reindexing runs unattended on a schedule
// and partial progress must survive one transient provider error.
func (s *Service) Reindex(ctx context.Context, params BatchParams) (report domindex.Report) {
	start := time.Now()
	defer func() { report.Finish(start) }()

	rows, err := s.fetchRows(ctx, params)
	if err != nil {
		report.Failed = len(params.IDs)
		report.AddError(fmt.Sprintf("fetch catalog rows: %v", err))
		return report
	}

	if len(params.IDs) > 0 && len(rows) < len(params.IDs) {
		report.Skipped += len(params.IDs) - len(rows)
	}

	active := rows[:0:0]
	var staleIDs []string
	for _, row := range rows {
		if row.Indexable() {
			active = append(active, row)
		} else {
			staleIDs = append(staleIDs, strconv.FormatInt(row.ID, 10))
		}
	}

	if len(staleIDs) > 0 {
		if err := s.store.Delete(ctx, staleIDs); err != nil {
			report.Failed += len(staleIDs)
			report.AddError(fmt.Sprintf("delete stale records: %v", err))
			metrics.IndexedRecordsTotal.WithLabelValues("batch", "failed").Add(float64(len(staleIDs)))
		} else {
			report.Deleted += len(staleIDs)
			metrics.IndexedRecordsTotal.WithLabelValues("batch", "deleted").Add(float64(len(staleIDs)))
		}
	}

	for batchNum := 0; batchNum*s.cfg.BatchSize < len(active); batchNum++ {
		lo := batchNum * s.cfg.BatchSize
		hi := min(lo+s.cfg.BatchSize, len(active))
		batch := active[lo:hi]

		if batchNum > 0 && s.cfg.BatchDelayMS > 0 {
			// Pacing knob for provider rate limits; zero means back-to-back.
			time.Sleep(time.Duration(s.cfg.BatchDelayMS) * time.Millisecond)
		}

		if err := s.indexBatch(ctx, batch); err != nil {
			report.Failed += len(batch)
			report.AddError(fmt.Sprintf("batch %d (%d records): %v", batchNum+1, len(batch), err))
			metrics.IndexedRecordsTotal.WithLabelValues("batch", "failed").Add(float64(len(batch)))
			s.log(ctx).Warn("embedding batch failed, continuing",
				zap.Int("batch", batchNum+1), zap.Error(err))
			continue
		}
		report.Indexed += len(batch)
		metrics.IndexedRecordsTotal.WithLabelValues("batch", "indexed").Add(float64(len(batch)))
	}

	s.log(ctx).Info("batch reindex finished",
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
	)
	return report
}

func (s *Service) fetchRows(ctx context.Context, params BatchParams) ([]listing.Listing, error) {
	if len(params.IDs) > 0 {
		return s.catalog.FetchByIDs(ctx, params.IDs)
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	return s.catalog.FetchWindow(ctx, limit, params.Offset, params.Force)
}

func (s *Service) indexBatch(ctx context.Context, batch []listing.Listing) error {
	texts := make([]string, len(batch))
	for i, l := range batch {
		texts[i] = l.EmbeddingText(s.cfg.MaxTextLen)
	}

	vecs, _, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	recs := make([]vector.Record, len(batch))
	for i, l := range batch {
		recs[i] = vector.RecordFromListing(l, vecs[i])
	}
	if err := s.store.UpsertBatch(ctx, recs); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
