package search

import (
	"sort"

	"github.com/plateshare/searchd/internal/domain/search/result"
)

// fusionConfig carries the weighted RRF constants. Defaults come from
// config.SearchConfig; nothing here hard-codes them.
type fusionConfig struct {
	k              int     // rank smoothing constant (Cormack et al. 2009 uses 60)
	semanticWeight float64 // semantic tolerates paraphrase, trusted slightly more
	lexicalWeight  float64
	overlapBoost   float64 // applied to the lexical contribution of items in both lists
}

// fuseWeightedRRF merges semantic and lexical result lists via weighted
// Reciprocal Rank Fusion. A result at 0-based rank r in a list with weight w
// contributes w/(k+r+1). Items present in both lists get their lexical
// contribution boosted before summing. The output id set is exactly the
// union of the input id sets; ties keep insertion order, semantic list first.
func fuseWeightedRRF(semantic, lexical []result.Item, cfg fusionConfig) []result.Item {
	type scored struct {
		item       result.Item
		score      float64
		inSemantic bool
		order      int
	}

	merged := make(map[string]*scored, len(semantic)+len(lexical))
	order := 0

	for rank, item := range semantic {
		s := cfg.semanticWeight / float64(cfg.k+rank+1)
		merged[item.ID] = &scored{item: item, score: s, inSemantic: true, order: order}
		order++
	}

	for rank, item := range lexical {
		s := cfg.lexicalWeight / float64(cfg.k+rank+1)
		if existing, ok := merged[item.ID]; ok {
			// Appearing in both lists is a stronger signal than the sum
			// of the independent contributions.
			existing.score += s * cfg.overlapBoost
			// Semantic item is kept; it carries the similarity score.
		} else {
			merged[item.ID] = &scored{item: item, score: s, order: order}
			order++
		}
	}

	fused := make([]*scored, 0, len(merged))
	for _, s := range merged {
		fused = append(fused, s)
	}

	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		return fused[i].order < fused[j].order
	})

	out := make([]result.Item, len(fused))
	for i, s := range fused {
		item := s.item
		item.Score = s.score
		out[i] = item
	}
	return out
}
