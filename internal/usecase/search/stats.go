package search

import (
	"sync"
	"time"

	"github.com/plateshare/searchd/internal/domain/search/mode"
)

// Stats holds the process-local search counters. Best-effort: lost on
// restart, never synchronized across instances.
type Stats struct {
	mu             sync.Mutex
	totalSearches  int64
	byMode         map[mode.Mode]int64
	cacheHits      int64
	cacheMisses    int64
	dedupCollapsed int64
	totalLatency   time.Duration
	providerUsage  map[string]int64
	startedAt      time.Time
}

// NewStats creates a stats collector.
func NewStats() *Stats {
	return &Stats{
		byMode:        make(map[mode.Mode]int64),
		providerUsage: make(map[string]int64),
		startedAt:     time.Now(),
	}
}

func (s *Stats) recordSearch(m mode.Mode, provider string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSearches++
	s.byMode[m]++
	s.totalLatency += latency
	if provider != "" {
		s.providerUsage[provider]++
	}
}

func (s *Stats) recordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

func (s *Stats) recordCacheMiss() {
	s.mu.Lock()
	s.cacheMisses++
	s.mu.Unlock()
}

func (s *Stats) recordDedupCollapsed() {
	s.mu.Lock()
	s.dedupCollapsed++
	s.mu.Unlock()
}

// Snapshot is the stats payload served at /stats.
type Snapshot struct {
	TotalSearches  int64            `json:"total_searches"`
	ByMode         map[string]int64 `json:"by_mode"`
	CacheHits      int64            `json:"cache_hits"`
	CacheMisses    int64            `json:"cache_misses"`
	CacheHitRate   float64          `json:"cache_hit_rate"`
	DedupCollapsed int64            `json:"dedup_collapsed"`
	AvgLatencyMS   float64          `json:"avg_latency_ms"`
	ProviderUsage  map[string]int64 `json:"provider_usage"`
	UptimeSec      int64            `json:"uptime_sec"`
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	byMode := make(map[string]int64, len(s.byMode))
	for k, v := range s.byMode {
		byMode[string(k)] = v
	}
	usage := make(map[string]int64, len(s.providerUsage))
	for k, v := range s.providerUsage {
		usage[k] = v
	}

	snap := Snapshot{
		TotalSearches:  s.totalSearches,
		ByMode:         byMode,
		CacheHits:      s.cacheHits,
		CacheMisses:    s.cacheMisses,
		DedupCollapsed: s.dedupCollapsed,
		ProviderUsage:  usage,
		UptimeSec:      int64(time.Since(s.startedAt).Seconds()),
	}
	if lookups := s.cacheHits + s.cacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(s.cacheHits) / float64(lookups)
	}
	if s.totalSearches > 0 {
		snap.AvgLatencyMS = float64(s.totalLatency.Milliseconds()) / float64(s.totalSearches)
	}
	return snap
}
