// Package catalog reads the marketplace listings table. The relational
// database is the source of truth; this service never writes to it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/plateshare/searchd/internal/config"
	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/domain/listing"
	"github.com/plateshare/searchd/internal/domain/search/filter"
	"github.com/plateshare/searchd/internal/sanitize"
)

const fullTextExpr = "to_tsvector('english', title || ' ' || coalesce(description, '')) " +
	"@@ plainto_tsquery('english', ?)"

// Repo reads listings and categories via gorm.
type Repo struct {
	db *gorm.DB
}

// Open connects to Postgres and configures the connection pool.
func Open(cfg config.CatalogConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// New creates a catalog repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("catalog ping: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog ping: %w", err)
	}
	return nil
}

// FullTextSearch runs the language-aware tier: tsvector match over title and
// description, newest first. Returns the page and the total match count.
func (r *Repo) FullTextSearch(
	ctx context.Context, query string, f filter.Filters, limit, offset int,
) ([]listing.Listing, int64, error) {
	base := r.activeListings(ctx, f).Where(fullTextExpr, query)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("full-text count: %w", err)
	}

	var rows []listing.Listing
	err := base.Order("listings.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("full-text search: %w", err)
	}
	return rows, total, nil
}

// SubstringSearch runs the fallback tier: escaped ILIKE over title and
// description. Catches partial words and typos the full-text tier misses.
func (r *Repo) SubstringSearch(
	ctx context.Context, query string, f filter.Filters, limit, offset int,
) ([]listing.Listing, int64, error) {
	pattern := "%" + sanitize.EscapeLike(query) + "%"
	base := r.activeListings(ctx, f).
		Where("listings.title ILIKE ? OR listings.description ILIKE ?", pattern, pattern)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("substring count: %w", err)
	}

	var rows []listing.Listing
	err := base.Order("listings.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("substring search: %w", err)
	}
	return rows, total, nil
}

// FetchByID loads one listing with its category name for the webhook path.
func (r *Repo) FetchByID(ctx context.Context, id int64) (listing.Listing, error) {
	var row listing.Listing
	err := r.withCategory(ctx).Where("listings.id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return listing.Listing{}, fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return listing.Listing{}, fmt.Errorf("fetch listing %d: %w", id, err)
	}
	return row, nil
}

// FetchByIDs loads listings for an explicit reindex id list. Missing ids are
// simply absent from the result; the caller counts them as skipped.
func (r *Repo) FetchByIDs(ctx context.Context, ids []int64) ([]listing.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []listing.Listing
	err := r.withCategory(ctx).Where("listings.id IN ?", ids).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch listings by ids: %w", err)
	}
	return rows, nil
}

// FetchWindow loads a (limit, offset) window of listings ordered by id for
// batch reindexing. includeInactive widens the pass to rows that must be
// deleted from the vector index.
func (r *Repo) FetchWindow(
	ctx context.Context, limit, offset int, includeInactive bool,
) ([]listing.Listing, error) {
	q := r.withCategory(ctx)
	if !includeInactive {
		q = q.Where("listings.is_active = ? AND listings.arranged_at IS NULL", true)
	}

	var rows []listing.Listing
	err := q.Order("listings.id").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch listing window: %w", err)
	}
	return rows, nil
}

// withCategory joins the category name into the listing row.
func (r *Repo) withCategory(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&listing.Listing{}).
		Select("listings.*, categories.name AS category_name").
		Joins("LEFT JOIN categories ON categories.id = listings.category_id")
}

// activeListings applies the filters shared by both lexical tiers.
func (r *Repo) activeListings(ctx context.Context, f filter.Filters) *gorm.DB {
	q := r.withCategory(ctx).
		Where("listings.is_active = ? AND listings.arranged_at IS NULL", true)

	if f.Category != "" {
		q = q.Where("categories.name = ?", f.Category)
	}
	if len(f.CategoryIDs) > 0 {
		q = q.Where("listings.category_id IN ?", f.CategoryIDs)
	}
	if f.ProfileID != "" {
		q = q.Where("listings.profile_id = ?", f.ProfileID)
	}
	if f.MaxAgeHours > 0 {
		cutoff := time.Now().Add(-time.Duration(f.MaxAgeHours) * time.Hour)
		q = q.Where("listings.created_at >= ?", cutoff)
	}
	if len(f.DietaryTags) > 0 {
		// dietary_tags is a jsonb array; require every requested tag.
		q = q.Where("listings.dietary_tags @> ?", jsonStringArray(f.DietaryTags))
	}
	return q
}

func jsonStringArray(tags []string) string {
	out := "["
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", t)
	}
	return out + "]"
}
