package vector

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/plateshare/searchd/internal/domain/search/filter"
)

func TestQueryContextAppliesTimeout(t *testing.T) {
	s := &Store{queryTimeout: 50 * time.Millisecond}

	ctx, cancel := s.queryContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline on the query context")
	}
	if remaining := time.Until(deadline); remaining > 50*time.Millisecond {
		t.Errorf("deadline too far out: %v", remaining)
	}
}

func TestQueryContextNoTimeoutConfigured(t *testing.T) {
	s := &Store{}

	ctx, cancel := s.queryContext(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("expected no deadline when the timeout is zero")
	}
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name    string
		filters filter.Filters
		want    []string
	}{
		{
			name:    "no filters still constrains active",
			filters: filter.Filters{},
			want:    []string{"@is_active:{1}"},
		},
		{
			name:    "category",
			filters: filter.Filters{Category: "baked goods"},
			want:    []string{"@is_active:{1}", `@category:{baked\ goods}`},
		},
		{
			name:    "category ids or-joined",
			filters: filter.Filters{CategoryIDs: []int64{3, 7}},
			want:    []string{"@category_id:{3 | 7}"},
		},
		{
			name:    "dietary tags or-joined and escaped",
			filters: filter.Filters{DietaryTags: []string{"vegan", "gluten-free"}},
			want:    []string{`@dietary_tags:{vegan | gluten\-free}`},
		},
		{
			name:    "profile",
			filters: filter.Filters{ProfileID: "user-1"},
			want:    []string{`@profile_id:{user\-1}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildFilter(tt.filters)
			for _, part := range tt.want {
				if !strings.Contains(got, part) {
					t.Errorf("filter %q missing part %q", got, part)
				}
			}
		})
	}
}

func TestBuildFilterMaxAge(t *testing.T) {
	got := buildFilter(filter.Filters{MaxAgeHours: 24})
	if !strings.Contains(got, "@posted_at:[") || !strings.Contains(got, " +inf]") {
		t.Fatalf("expected posted_at range clause, got %q", got)
	}
	// The cutoff must be roughly 24h in the past.
	start := strings.Index(got, "@posted_at:[") + len("@posted_at:[")
	end := strings.Index(got[start:], " ")
	cutoff, err := strconv.ParseInt(got[start:start+end], 10, 64)
	if err != nil {
		t.Fatalf("parse cutoff from %q: %v", got, err)
	}
	want := time.Now().Add(-24 * time.Hour).Unix()
	if diff := cutoff - want; diff < -5 || diff > 5 {
		t.Errorf("cutoff %d too far from expected %d", cutoff, want)
	}
}

func TestEscapeTag(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"vegan", "vegan"},
		{"gluten-free", `gluten\-free`},
		{"soups & stews", `soups\ \&\ stews`},
		{"50% off", `50\%\ off`},
	}
	for _, tt := range tests {
		if got := escapeTag(tt.in); got != tt.want {
			t.Errorf("escapeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVectorToBytes(t *testing.T) {
	vec := []float32{1.5, -2.25}
	got := vectorToBytes(vec)

	if len(got) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(got))
	}
	for i, f := range vec {
		bits := binary.LittleEndian.Uint32([]byte(got)[i*4:])
		if math.Float32frombits(bits) != f {
			t.Errorf("element %d round-trips to %g, want %g", i, math.Float32frombits(bits), f)
		}
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	lat, lng := 52.52, 13.405
	catID := int64(4)
	rec := Record{
		ID: "42",
		Meta: Metadata{
			Title:         "free bread",
			Description:   "sourdough from this morning",
			Category:      "baked goods",
			CategoryID:    &catID,
			PickupAddress: "Karl-Marx-Str. 1",
			ProfileID:     "user-1",
			PostedAt:      time.Unix(1700000000, 0).UTC(),
			Lat:           &lat,
			Lng:           &lng,
			DietaryTags:   []string{"vegan", "halal"},
			Images:        []string{"a.jpg", "b.jpg"},
			IsActive:      true,
		},
	}

	got := metadataFromFields(rec.fieldPairs())

	if got.Title != rec.Meta.Title || got.Description != rec.Meta.Description {
		t.Errorf("text fields did not survive: %+v", got)
	}
	if got.CategoryID == nil || *got.CategoryID != catID {
		t.Errorf("category id did not survive: %+v", got.CategoryID)
	}
	if !got.PostedAt.Equal(rec.Meta.PostedAt) {
		t.Errorf("posted_at %v, want %v", got.PostedAt, rec.Meta.PostedAt)
	}
	if got.Lat == nil || *got.Lat != lat || got.Lng == nil || *got.Lng != lng {
		t.Errorf("coordinates did not survive: %v %v", got.Lat, got.Lng)
	}
	if len(got.DietaryTags) != 2 || got.DietaryTags[0] != "vegan" {
		t.Errorf("dietary tags did not survive: %v", got.DietaryTags)
	}
	if len(got.Images) != 2 || got.Images[1] != "b.jpg" {
		t.Errorf("images did not survive: %v", got.Images)
	}
	if !got.IsActive {
		t.Error("is_active did not survive")
	}
}
