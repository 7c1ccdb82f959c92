package result

import (
	"strconv"

	"github.com/plateshare/searchd/internal/domain/geo"
	"github.com/plateshare/searchd/internal/domain/listing"
)

// FromListing maps a catalog row to a result item with the given score.
func FromListing(l listing.Listing, score float64) Item {
	item := Item{
		ID:          strconv.FormatInt(l.ID, 10),
		Score:       score,
		Title:       l.Title,
		Description: TruncateDescription(l.Description),
		Category:    l.CategoryName,
		PickupAddr:  l.PickupAddress,
		PostedAt:    l.CreatedAt,
		DietaryTags: l.DietaryTags,
		Images:      l.Images,
	}
	if l.Lat != nil && l.Lng != nil {
		item.Location = &geo.Point{Lat: *l.Lat, Lng: *l.Lng}
	}
	return item
}
