// Package result defines the ephemeral search result item shape.
package result

import (
	"sort"
	"time"

	"github.com/plateshare/searchd/internal/domain/geo"
	"github.com/plateshare/searchd/internal/sanitize"
)

// DescriptionPreviewLen bounds the denormalized description carried on a result.
const DescriptionPreviewLen = 280

// Item is one search hit. Constructed fresh per query, never stored. Score
// scale depends on the mode that produced it and is not comparable across modes.
type Item struct {
	ID          string     `json:"id"`
	Score       float64    `json:"score"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	PickupAddr  string     `json:"pickupAddress,omitempty"`
	PostedAt    time.Time  `json:"postedAt"`
	Location    *geo.Point `json:"location,omitempty"`
	DistanceKM  *float64   `json:"distanceKm,omitempty"`
	DietaryTags []string   `json:"dietaryTags,omitempty"`
	Images      []string   `json:"images,omitempty"`
}

// TruncateDescription shortens a description to the preview length, cutting
// on a rune boundary.
func TruncateDescription(s string) string {
	return sanitize.Truncate(s, DescriptionPreviewLen)
}

// FilterByRadius drops items without coordinates or beyond the radius,
// attaches the rounded distance to survivors and sorts them ascending by
// distance. Applying it twice with the same circle is a no-op.
func FilterByRadius(items []Item, circle geo.Circle) []Item {
	out := items[:0]
	for i := range items {
		if items[i].Location == nil {
			continue
		}
		d := geo.HaversineKM(circle.Center, *items[i].Location)
		if d > circle.RadiusKM {
			continue
		}
		rounded := geo.RoundKM(d)
		items[i].DistanceKM = &rounded
		out = append(out, items[i])
	}

	// Stable sort keeps the retrieval order for equal distances.
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].DistanceKM < *out[j].DistanceKM
	})
	return out
}

// Paginate slices items by offset and limit, clamping to bounds.
func Paginate(items []Item, offset, limit int) []Item {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
