// Package search executes semantic, lexical, fuzzy and hybrid searches over
// the listings catalog and its vector index.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/plateshare/searchd/internal/config"
	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/domain/listing"
	"github.com/plateshare/searchd/internal/domain/search/mode"
	"github.com/plateshare/searchd/internal/domain/search/request"
	"github.com/plateshare/searchd/internal/domain/search/result"
	logpkg "github.com/plateshare/searchd/internal/logger"
	"github.com/plateshare/searchd/internal/metrics"
)

// Service coordinates retrieval, fusion, caching and request deduplication.
// One instance per process, owned by the composition root.
type Service struct {
	index   VectorIndex
	catalog Catalog
	embed   Embedder
	cfg     config.SearchConfig
	fusion  fusionConfig
	cache   *expirable.LRU[string, *Response]
	flight  singleflight.Group
	stats   *Stats
	logger  *zap.Logger
}

// New creates a search service. The cache is TTL-bound and capacity-bound;
// entries expire after cfg.CacheTTLSec regardless of pressure.
func New(index VectorIndex, catalog Catalog, embed Embedder, cfg config.SearchConfig, logger *zap.Logger) *Service {
	return &Service{
		index:   index,
		catalog: catalog,
		embed:   embed,
		cfg:     cfg,
		fusion: fusionConfig{
			k:              cfg.RRFK,
			semanticWeight: cfg.SemanticWeight,
			lexicalWeight:  cfg.LexicalWeight,
			overlapBoost:   cfg.OverlapBoost,
		},
		cache: expirable.NewLRU[string, *Response](
			cfg.CacheCapacity, nil, time.Duration(cfg.CacheTTLSec)*time.Second),
		stats:  NewStats(),
		logger: logger,
	}
}

// Stats exposes the process-local counters for the stats endpoint.
func (s *Service) Stats() *Stats { return s.stats }

// Limits exposes the configured request bounds so transports build requests
// against the same configuration the service runs with.
func (s *Service) Limits() request.Limits {
	return request.Limits{
		MaxQueryLen:  s.cfg.MaxQueryLen,
		DefaultLimit: s.cfg.DefaultLimit,
		MaxLimit:     s.cfg.MaxLimit,
	}
}

// log returns the request-scoped logger when the context carries one, so
// warnings emitted mid-search keep their request id.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logpkg.FromContext(ctx, s.logger)
}

// Search answers a search request, consulting the cache first and collapsing
// concurrent identical requests into one computation.
func (s *Service) Search(ctx context.Context, req request.Request) (*Response, error) {
	key := req.CacheKey()

	if cached, ok := s.cache.Get(key); ok {
		s.stats.recordCacheHit()
		metrics.CacheTotal.WithLabelValues("hit").Inc()
		resp := *cached
		resp.Cached = true
		return &resp, nil
	}
	s.stats.recordCacheMiss()
	metrics.CacheTotal.WithLabelValues("miss").Inc()

	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.compute(ctx, req, key)
	})
	if shared {
		s.stats.recordDedupCollapsed()
		metrics.DedupCollapsedTotal.Inc()
	}
	if err != nil {
		return nil, err
	}

	resp := *(v.(*Response))
	return &resp, nil
}

// compute runs the mode-specific retrieval and caches a successful response.
func (s *Service) compute(ctx context.Context, req request.Request, key string) (*Response, error) {
	start := time.Now()

	var (
		resp *Response
		err  error
	)
	switch req.Mode() {
	case mode.Semantic:
		resp, err = s.semantic(ctx, req)
	case mode.Text:
		resp, err = s.text(ctx, req)
	case mode.Fuzzy:
		resp, err = s.fuzzy(ctx, req)
	case mode.Hybrid:
		resp, err = s.hybrid(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unsupported mode %q", domain.ErrValidation, req.Mode())
	}

	elapsed := time.Since(start)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(req.Mode().String(), "error").Inc()
		return nil, err
	}

	resp.Mode = req.Mode()
	resp.TookMS = elapsed.Milliseconds()

	s.stats.recordSearch(req.Mode(), resp.Provider, elapsed)
	metrics.SearchesTotal.WithLabelValues(req.Mode().String(), "success").Inc()
	metrics.SearchDuration.WithLabelValues(req.Mode().String()).Observe(elapsed.Seconds())

	s.cache.Add(key, resp)
	return resp, nil
}

// --- Semantic ---

func (s *Service) semantic(ctx context.Context, req request.Request) (*Response, error) {
	items, provider, err := s.semanticFetch(ctx, req, 2*(req.Limit()+req.Offset()))
	if err != nil {
		return nil, err
	}
	return &Response{
		Results:  result.Paginate(items, req.Offset(), req.Limit()),
		Total:    len(items),
		Provider: provider,
	}, nil
}

// semanticFetch embeds the query, runs KNN over-fetched to survive
// post-filtering, drops low-similarity neighbors and applies the geo filter.
// The returned list is unpaginated.
func (s *Service) semanticFetch(ctx context.Context, req request.Request, topK int) ([]result.Item, string, error) {
	ctx, cancel := s.branchContext(ctx)
	defer cancel()

	vec, provider, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, "", fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Query(ctx, vec, topK, req.Filters())
	if err != nil {
		return nil, "", fmt.Errorf("vector query: %w", err)
	}

	items := make([]result.Item, 0, len(matches))
	for _, m := range matches {
		// A low-similarity neighbor is worse than no result.
		if m.Score < s.cfg.MinSimilarity {
			continue
		}
		items = append(items, m.Item())
	}

	return s.applyGeo(items, req), provider, nil
}

// --- Lexical ---

func (s *Service) text(ctx context.Context, req request.Request) (*Response, error) {
	items, total, err := s.lexicalFetch(ctx, req, 2*(req.Limit()+req.Offset()))
	if err != nil {
		return nil, err
	}
	return &Response{
		Results: result.Paginate(items, req.Offset(), req.Limit()),
		Total:   total,
	}, nil
}

// lexicalFetch tries the full-text tier first and falls back to substring
// matching when it errors or finds nothing: full-text misses partial words
// and typos that a plain substring match still catches.
func (s *Service) lexicalFetch(ctx context.Context, req request.Request, fetchLimit int) ([]result.Item, int, error) {
	ctx, cancel := s.branchContext(ctx)
	defer cancel()

	rows, dbTotal, err := s.catalog.FullTextSearch(ctx, req.Query(), req.Filters(), fetchLimit, 0)
	if err != nil || len(rows) == 0 {
		if err != nil {
			s.log(ctx).Warn("full-text tier failed, falling back to substring match", zap.Error(err))
		}
		rows, dbTotal, err = s.catalog.SubstringSearch(ctx, req.Query(), req.Filters(), fetchLimit, 0)
		if err != nil {
			return nil, 0, fmt.Errorf("lexical search: %w", err)
		}
	}

	items := listingsToItems(rows)
	items = s.applyGeo(items, req)

	total := int(dbTotal)
	if req.Filters().Geo != nil {
		// The geo filter runs after retrieval; the DB total no longer
		// reflects what survived.
		total = len(items)
	}
	return items, total, nil
}

// --- Fuzzy ---

// fuzzy is the cheap standalone mode: substring match only, scores assigned
// by position since pure substring matching yields no relevance signal.
func (s *Service) fuzzy(ctx context.Context, req request.Request) (*Response, error) {
	ctx, cancel := s.branchContext(ctx)
	defer cancel()

	fetchLimit := 2 * (req.Limit() + req.Offset())
	rows, dbTotal, err := s.catalog.SubstringSearch(ctx, req.Query(), req.Filters(), fetchLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}

	items := listingsToItems(rows)
	items = s.applyGeo(items, req)

	total := int(dbTotal)
	if req.Filters().Geo != nil {
		total = len(items)
	}
	return &Response{
		Results: result.Paginate(items, req.Offset(), req.Limit()),
		Total:   total,
	}, nil
}

// --- Hybrid ---

// hybrid runs the semantic and lexical branches concurrently and fuses the
// ranked lists. One branch failing degrades the response; both failing fails
// it. Branch errors are captured out-of-band so neither branch can cancel
// the other.
func (s *Service) hybrid(ctx context.Context, req request.Request) (*Response, error) {
	fetchK := 2 * req.Limit()

	var (
		semItems []result.Item
		provider string
		semErr   error
		lexItems []result.Item
		lexErr   error
	)

	var g errgroup.Group
	g.Go(func() error {
		semItems, provider, semErr = s.semanticFetch(ctx, req, fetchK)
		return nil
	})
	g.Go(func() error {
		lexItems, _, lexErr = s.lexicalFetch(ctx, req, fetchK)
		return nil
	})
	_ = g.Wait()

	if semErr != nil && lexErr != nil {
		return nil, fmt.Errorf("%w: semantic: %v; lexical: %v", domain.ErrSearchUnavailable, semErr, lexErr)
	}

	degraded := semErr != nil || lexErr != nil
	if semErr != nil {
		s.log(ctx).Warn("hybrid semantic branch failed, serving lexical only", zap.Error(semErr))
	}
	if lexErr != nil {
		s.log(ctx).Warn("hybrid lexical branch failed, serving semantic only", zap.Error(lexErr))
	}

	fused := fuseWeightedRRF(semItems, lexItems, s.fusion)

	return &Response{
		Results:  result.Paginate(fused, req.Offset(), req.Limit()),
		Total:    len(fused),
		Provider: provider,
		Degraded: degraded,
	}, nil
}

// --- Helpers ---

func (s *Service) branchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(s.cfg.BranchTimeout)*time.Millisecond)
}

func (s *Service) applyGeo(items []result.Item, req request.Request) []result.Item {
	if req.Filters().Geo == nil {
		return items
	}
	return result.FilterByRadius(items, *req.Filters().Geo)
}

// listingsToItems maps catalog rows to result items with positional
// linear-decay scores: retrieval order is the only relevance signal.
func listingsToItems(rows []listing.Listing) []result.Item {
	items := make([]result.Item, len(rows))
	n := len(rows)
	for i, row := range rows {
		score := 1.0 - float64(i)/float64(n)
		items[i] = result.FromListing(row, score)
	}
	return items
}
