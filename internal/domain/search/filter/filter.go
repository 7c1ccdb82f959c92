// Package filter defines the optional constraints a search request may carry.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plateshare/searchd/internal/domain/geo"
)

// Filters narrows a search. Every field is independently optional; a zero
// value means no constraint.
type Filters struct {
	Category    string      `json:"category,omitempty"`
	DietaryTags []string    `json:"dietaryTags,omitempty"`
	Geo         *geo.Circle `json:"-"`
	MaxAgeHours int         `json:"maxAgeHours,omitempty"`
	ProfileID   string      `json:"profileId,omitempty"`
	CategoryIDs []int64     `json:"categoryIds,omitempty"`
}

// IsZero reports whether no constraint is set.
func (f Filters) IsZero() bool {
	return f.Category == "" && len(f.DietaryTags) == 0 && f.Geo == nil &&
		f.MaxAgeHours == 0 && f.ProfileID == "" && len(f.CategoryIDs) == 0
}

// Validate rejects structurally impossible filters. Absent fields are fine.
func (f Filters) Validate() error {
	if f.Geo != nil && !f.Geo.Valid() {
		return fmt.Errorf("geo filter out of range: lat=%g lng=%g radius=%g",
			f.Geo.Center.Lat, f.Geo.Center.Lng, f.Geo.RadiusKM)
	}
	if f.MaxAgeHours < 0 {
		return fmt.Errorf("maxAgeHours must be non-negative, got %d", f.MaxAgeHours)
	}
	return nil
}

// Fingerprint renders a stable string form for cache keying. Set-valued
// fields are sorted so logically equal filters key identically.
func (f Filters) Fingerprint() string {
	var b strings.Builder

	b.WriteString("cat=")
	b.WriteString(f.Category)

	tags := append([]string(nil), f.DietaryTags...)
	sort.Strings(tags)
	b.WriteString("|tags=")
	b.WriteString(strings.Join(tags, ","))

	b.WriteString("|geo=")
	if f.Geo != nil {
		fmt.Fprintf(&b, "%.5f,%.5f,%.2f", f.Geo.Center.Lat, f.Geo.Center.Lng, f.Geo.RadiusKM)
	}

	fmt.Fprintf(&b, "|age=%d|profile=%s", f.MaxAgeHours, f.ProfileID)

	ids := append([]int64(nil), f.CategoryIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	b.WriteString("|catids=")
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", id)
	}

	return b.String()
}
