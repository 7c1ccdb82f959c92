package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/plateshare/searchd/internal/domain"
)

// EnsureIndex creates the listings FT index if it does not exist yet.
// Schema: HNSW vector field plus the TAG/NUMERIC metadata fields the search
// filters match against.
func (s *Store) EnsureIndex(ctx context.Context) error {
	args := []string{
		s.index,
		"ON", "HASH",
		"PREFIX", "1", s.prefix,
		"SCHEMA",
		"embedding", "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dim),
		"DISTANCE_METRIC", "COSINE",
		"category", "TAG",
		"category_id", "TAG",
		"dietary_tags", "TAG", "SEPARATOR", ",",
		"profile_id", "TAG",
		"is_active", "TAG",
		"posted_at", "NUMERIC",
	}

	cmd := s.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if re, ok := rueidis.IsRedisErr(err); ok && containsIgnoreCase(re.Error(), "index already exists") {
			return nil
		}
		return fmt.Errorf("%w: create index: %v", domain.ErrVectorStore, err)
	}
	return nil
}

// Upsert writes one record. Overwriting an existing id is the intended path
// for updates; HSET replaces field-by-field and the vector blob wholesale.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Vector) != s.dim {
		return fmt.Errorf("%w: vector dimension %d, want %d", domain.ErrVectorStore, len(rec.Vector), s.dim)
	}

	cmd := s.client.B().Hset().Key(s.key(rec.ID)).FieldValue().
		FieldValue("embedding", vectorToBytes(rec.Vector))
	for k, v := range rec.fieldPairs() {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("%w: upsert %s: %v", domain.ErrVectorStore, rec.ID, err)
	}
	return nil
}

// UpsertBatch writes multiple records in one round-trip. The first failing
// record aborts with an error naming it; callers treat the batch as failed.
func (s *Store) UpsertBatch(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(recs))
	for i, rec := range recs {
		if len(rec.Vector) != s.dim {
			return fmt.Errorf("%w: record %s: vector dimension %d, want %d",
				domain.ErrVectorStore, rec.ID, len(rec.Vector), s.dim)
		}
		cmd := s.client.B().Hset().Key(s.key(rec.ID)).FieldValue().
			FieldValue("embedding", vectorToBytes(rec.Vector))
		for k, v := range rec.fieldPairs() {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return fmt.Errorf("%w: upsert %s: %v", domain.ErrVectorStore, recs[i].ID, err)
		}
	}
	return nil
}

// Delete removes records by id. Missing ids are not an error; delete is
// idempotent so concurrent webhook deliveries stay safe.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}

	cmd := s.client.B().Del().Key(keys...).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: delete: %v", domain.ErrVectorStore, err)
	}
	return nil
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
