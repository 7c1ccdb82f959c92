package vector

import (
	"strconv"
	"strings"
	"time"

	"github.com/plateshare/searchd/internal/domain/geo"
	"github.com/plateshare/searchd/internal/domain/listing"
	"github.com/plateshare/searchd/internal/domain/search/result"
)

// Metadata is the denormalized field bag stored next to a vector so a search
// hit renders without a catalog round-trip.
type Metadata struct {
	Title         string
	Description   string
	Category      string
	CategoryID    *int64
	PickupAddress string
	ProfileID     string
	PostedAt      time.Time
	Lat           *float64
	Lng           *float64
	DietaryTags   []string
	Images        []string
	IsActive      bool
}

// Record is one vector store entry. Its ID matches the catalog primary key
// in string form; upserting the same ID twice overwrites (last write wins).
type Record struct {
	ID     string
	Vector []float32
	Meta   Metadata
}

// RecordFromListing maps a catalog row to a vector record, truncating the
// description to the preview length carried on search results.
func RecordFromListing(l listing.Listing, vec []float32) Record {
	return Record{
		ID:     strconv.FormatInt(l.ID, 10),
		Vector: vec,
		Meta: Metadata{
			Title:         l.Title,
			Description:   result.TruncateDescription(l.Description),
			Category:      l.CategoryName,
			CategoryID:    l.CategoryID,
			PickupAddress: l.PickupAddress,
			ProfileID:     l.ProfileID,
			PostedAt:      l.CreatedAt,
			Lat:           l.Lat,
			Lng:           l.Lng,
			DietaryTags:   l.DietaryTags,
			Images:        l.Images,
			IsActive:      l.IsActive,
		},
	}
}

// fieldPairs flattens metadata into the HSET field layout. Tags are stored
// comma-separated for TAG matching; timestamps as unix seconds for NUMERIC
// range filtering.
func (r Record) fieldPairs() map[string]string {
	fields := map[string]string{
		"title":       r.Meta.Title,
		"description": r.Meta.Description,
		"posted_at":   strconv.FormatInt(r.Meta.PostedAt.Unix(), 10),
		"is_active":   boolTag(r.Meta.IsActive),
	}
	if r.Meta.Category != "" {
		fields["category"] = r.Meta.Category
	}
	if r.Meta.CategoryID != nil {
		fields["category_id"] = strconv.FormatInt(*r.Meta.CategoryID, 10)
	}
	if r.Meta.PickupAddress != "" {
		fields["pickup_address"] = r.Meta.PickupAddress
	}
	if r.Meta.ProfileID != "" {
		fields["profile_id"] = r.Meta.ProfileID
	}
	if r.Meta.Lat != nil && r.Meta.Lng != nil {
		fields["lat"] = strconv.FormatFloat(*r.Meta.Lat, 'f', -1, 64)
		fields["lng"] = strconv.FormatFloat(*r.Meta.Lng, 'f', -1, 64)
	}
	if len(r.Meta.DietaryTags) > 0 {
		fields["dietary_tags"] = strings.Join(r.Meta.DietaryTags, ",")
	}
	if len(r.Meta.Images) > 0 {
		fields["images"] = strings.Join(r.Meta.Images, "|")
	}
	return fields
}

// Match is one scored KNN hit with its stored metadata.
type Match struct {
	ID    string
	Score float64 // cosine similarity in [0,1]
	Meta  Metadata
}

// Item maps a match to a search result item.
func (m Match) Item() result.Item {
	item := result.Item{
		ID:          m.ID,
		Score:       m.Score,
		Title:       m.Meta.Title,
		Description: m.Meta.Description,
		Category:    m.Meta.Category,
		PickupAddr:  m.Meta.PickupAddress,
		PostedAt:    m.Meta.PostedAt,
		DietaryTags: m.Meta.DietaryTags,
		Images:      m.Meta.Images,
	}
	if m.Meta.Lat != nil && m.Meta.Lng != nil {
		item.Location = &geo.Point{Lat: *m.Meta.Lat, Lng: *m.Meta.Lng}
	}
	return item
}

func metadataFromFields(fields map[string]string) Metadata {
	meta := Metadata{
		Title:         fields["title"],
		Description:   fields["description"],
		Category:      fields["category"],
		PickupAddress: fields["pickup_address"],
		ProfileID:     fields["profile_id"],
		IsActive:      fields["is_active"] == "1",
	}
	if v, err := strconv.ParseInt(fields["posted_at"], 10, 64); err == nil {
		meta.PostedAt = time.Unix(v, 0).UTC()
	}
	if v, err := strconv.ParseInt(fields["category_id"], 10, 64); err == nil {
		meta.CategoryID = &v
	}
	if lat, err := strconv.ParseFloat(fields["lat"], 64); err == nil {
		if lng, err := strconv.ParseFloat(fields["lng"], 64); err == nil {
			meta.Lat, meta.Lng = &lat, &lng
		}
	}
	if v := fields["dietary_tags"]; v != "" {
		meta.DietaryTags = strings.Split(v, ",")
	}
	if v := fields["images"]; v != "" {
		meta.Images = strings.Split(v, "|")
	}
	return meta
}

func boolTag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
