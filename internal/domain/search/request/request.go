// Package request defines the immutable search request value object.
package request

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/domain/search/filter"
	"github.com/plateshare/searchd/internal/domain/search/mode"
	"github.com/plateshare/searchd/internal/sanitize"
)

// Fallback bounds when the caller supplies no Limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Limits bounds query length and pagination, normally sourced from the
// search configuration. Zero fields fall back to the package defaults.
type Limits struct {
	MaxQueryLen  int
	DefaultLimit int
	MaxLimit     int
}

func (l Limits) withDefaults() Limits {
	if l.MaxQueryLen <= 0 {
		l.MaxQueryLen = sanitize.MaxQueryLen
	}
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = DefaultLimit
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = MaxLimit
	}
	return l
}

// Request is an immutable search request. Built once per incoming call.
type Request struct {
	raw       string
	sanitized string
	mode      mode.Mode
	limit     int
	offset    int
	filters   filter.Filters
}

// New sanitizes the raw query and validates pagination and filters against
// the given limits.
func New(raw string, m mode.Mode, filters filter.Filters, limit, offset int, lim Limits) (Request, error) {
	lim = lim.withDefaults()

	sanitized := sanitize.Query(raw, lim.MaxQueryLen)
	if sanitized == "" {
		return Request{}, fmt.Errorf("%w: query is empty after sanitization", domain.ErrValidation)
	}
	if err := filters.Validate(); err != nil {
		return Request{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if limit <= 0 {
		limit = lim.DefaultLimit
	}
	if limit > lim.MaxLimit {
		limit = lim.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Request{
		raw:       raw,
		sanitized: sanitized,
		mode:      m,
		limit:     limit,
		offset:    offset,
		filters:   filters,
	}, nil
}

// Raw returns the original query text for display/highlighting.
func (r Request) Raw() string { return r.raw }

// Query returns the sanitized query text used for retrieval.
func (r Request) Query() string { return r.sanitized }

func (r Request) Mode() mode.Mode         { return r.mode }
func (r Request) Limit() int              { return r.limit }
func (r Request) Offset() int             { return r.offset }
func (r Request) Filters() filter.Filters { return r.filters }

// CacheKey is a deterministic hash of (mode, normalized query, filters,
// limit, offset). Requests that would compute the same response share a key.
func (r Request) CacheKey() string {
	payload := fmt.Sprintf("%s|%s|%s|%d|%d",
		r.mode, sanitize.Normalize(r.sanitized), r.filters.Fingerprint(), r.limit, r.offset)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
