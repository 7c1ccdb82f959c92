package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/domain/search/filter"
)

var returnFields = []string{
	"title", "description", "category", "category_id", "pickup_address",
	"profile_id", "posted_at", "lat", "lng", "dietary_tags", "images",
	"is_active", "__embedding_score",
}

// Query runs a KNN search via FT.SEARCH, pre-filtered by the request filters.
// Only active records are considered. Scores are cosine similarity in [0,1].
func (s *Store) Query(ctx context.Context, vec []float32, topK int, f filter.Filters) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", domain.ErrVectorStore)
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	filterStr := buildFilter(f)
	queryStr := fmt.Sprintf("(%s)=>[KNN %d @embedding $BLOB AS __embedding_score]", filterStr, topK)

	args := []string{s.index, queryStr,
		"RETURN", strconv.Itoa(len(returnFields)),
	}
	args = append(args, returnFields...)
	args = append(args,
		"SORTBY", "__embedding_score",
		"PARAMS", "2", "BLOB", vectorToBytes(vec),
		"LIMIT", "0", strconv.Itoa(topK),
		"DIALECT", "2",
	)

	cmd := s.client.B().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("%w: knn query: %v", domain.ErrVectorStore, err)
	}

	return s.parseMatches(raw)
}

// queryContext applies the configured per-query timeout, if any.
func (s *Store) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// buildFilter translates request filters into an FT.SEARCH pre-filter string.
// is_active doubles as a soft filter in case a delete lagged a deactivation.
func buildFilter(f filter.Filters) string {
	parts := []string{"@is_active:{1}"}

	if f.Category != "" {
		parts = append(parts, fmt.Sprintf("@category:{%s}", escapeTag(f.Category)))
	}
	if len(f.CategoryIDs) > 0 {
		ids := make([]string, len(f.CategoryIDs))
		for i, id := range f.CategoryIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		parts = append(parts, fmt.Sprintf("@category_id:{%s}", strings.Join(ids, " | ")))
	}
	if len(f.DietaryTags) > 0 {
		tags := make([]string, len(f.DietaryTags))
		for i, t := range f.DietaryTags {
			tags[i] = escapeTag(t)
		}
		parts = append(parts, fmt.Sprintf("@dietary_tags:{%s}", strings.Join(tags, " | ")))
	}
	if f.ProfileID != "" {
		parts = append(parts, fmt.Sprintf("@profile_id:{%s}", escapeTag(f.ProfileID)))
	}
	if f.MaxAgeHours > 0 {
		cutoff := time.Now().Add(-time.Duration(f.MaxAgeHours) * time.Hour).Unix()
		parts = append(parts, fmt.Sprintf("@posted_at:[%d +inf]", cutoff))
	}

	return strings.Join(parts, " ")
}

func (s *Store) parseMatches(raw []rueidis.RedisMessage) ([]Match, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fieldMsgs, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		fields := make(map[string]string, len(fieldMsgs)/2)
		for j := 0; j+1 < len(fieldMsgs); j += 2 {
			name, err := fieldMsgs[j].ToString()
			if err != nil {
				continue
			}
			value, err := fieldMsgs[j+1].ToString()
			if err != nil {
				continue
			}
			fields[name] = value
		}

		m := Match{
			ID:   strings.TrimPrefix(key, s.prefix),
			Meta: metadataFromFields(fields),
		}
		if dist, err := strconv.ParseFloat(fields["__embedding_score"], 64); err == nil {
			m.Score = max(0, 1.0-dist) // cosine distance → similarity, clamped to [0,1]
		}
		matches = append(matches, m)
	}

	return matches, nil
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "\"", "\\\"", "'", "\\'",
	":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
	"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)",
	"-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
)

func escapeTag(v string) string {
	return tagEscaper.Replace(v)
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
