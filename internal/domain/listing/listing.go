// Package listing defines the catalog row the search engine reads and indexes.
package listing

import (
	"strings"
	"time"

	"github.com/plateshare/searchd/internal/sanitize"
)

// MaxEmbeddingTextLen bounds the text sent to embedding providers when the
// caller passes no limit. Oversized listings are truncated deterministically
// instead of failing on provider input limits.
const MaxEmbeddingTextLen = 8000

// Listing is the catalog source-of-truth row for a food-sharing listing.
// Column mapping follows the marketplace schema; this service only reads it.
type Listing struct {
	ID            int64      `gorm:"column:id;primaryKey" json:"id"`
	ProfileID     string     `gorm:"column:profile_id" json:"profileId"`
	Title         string     `gorm:"column:title" json:"title"`
	Description   string     `gorm:"column:description" json:"description"`
	CategoryID    *int64     `gorm:"column:category_id" json:"categoryId,omitempty"`
	CategoryName  string     `gorm:"column:category_name;->" json:"categoryName,omitempty"`
	PickupAddress string     `gorm:"column:pickup_address" json:"pickupAddress,omitempty"`
	Lat           *float64   `gorm:"column:lat" json:"lat,omitempty"`
	Lng           *float64   `gorm:"column:lng" json:"lng,omitempty"`
	DietaryTags   []string   `gorm:"serializer:json;column:dietary_tags" json:"dietaryTags,omitempty"`
	Images        []string   `gorm:"serializer:json;column:images" json:"images,omitempty"`
	IsActive      bool       `gorm:"column:is_active" json:"isActive"`
	ArrangedAt    *time.Time `gorm:"column:arranged_at" json:"arrangedAt,omitempty"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName implements gorm's naming override.
func (Listing) TableName() string { return "listings" }

// Indexable reports whether the listing belongs in the vector index: active
// and not yet arranged/claimed. Everything else must be absent from the index.
func (l Listing) Indexable() bool {
	return l.IsActive && l.ArrangedAt == nil
}

// EmbeddingText builds the text embedded for this listing: title, description
// and category name joined, truncated to maxLen bytes on a rune boundary.
// maxLen <= 0 means MaxEmbeddingTextLen. Both the webhook and batch indexing
// paths use this exact construction so records re-embed identically
// regardless of which path touched them last.
func (l Listing) EmbeddingText(maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxEmbeddingTextLen
	}
	parts := make([]string, 0, 3)
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	if l.Description != "" {
		parts = append(parts, l.Description)
	}
	if l.CategoryName != "" {
		parts = append(parts, l.CategoryName)
	}
	return sanitize.Truncate(strings.Join(parts, "\n"), maxLen)
}
