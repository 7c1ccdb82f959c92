package result

import (
	"strings"
	"testing"

	"github.com/plateshare/searchd/internal/domain/geo"
)

func berlinCircle(radiusKM float64) geo.Circle {
	return geo.Circle{Center: geo.Point{Lat: 52.52, Lng: 13.405}, RadiusKM: radiusKM}
}

func TestFilterByRadius(t *testing.T) {
	items := []Item{
		{ID: "far", Location: &geo.Point{Lat: 53.5511, Lng: 9.9937}},   // Hamburg, ~255km
		{ID: "near", Location: &geo.Point{Lat: 52.53, Lng: 13.41}},     // ~1km
		{ID: "nocoords"},                                               // dropped
		{ID: "mid", Location: &geo.Point{Lat: 52.4, Lng: 13.6}},        // ~18km
	}

	got := FilterByRadius(items, berlinCircle(25))

	if len(got) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(got))
	}
	if got[0].ID != "near" || got[1].ID != "mid" {
		t.Errorf("expected ascending distance order [near mid], got [%s %s]", got[0].ID, got[1].ID)
	}
	for _, it := range got {
		if it.DistanceKM == nil {
			t.Errorf("item %s missing distance", it.ID)
		}
	}
}

func TestFilterByRadiusIdempotent(t *testing.T) {
	items := []Item{
		{ID: "a", Location: &geo.Point{Lat: 52.53, Lng: 13.41}},
		{ID: "b", Location: &geo.Point{Lat: 52.4, Lng: 13.6}},
	}

	once := FilterByRadius(items, berlinCircle(25))
	twice := FilterByRadius(once, berlinCircle(25))

	if len(once) != len(twice) {
		t.Fatalf("second pass changed count: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID || *once[i].DistanceKM != *twice[i].DistanceKM {
			t.Errorf("second pass changed item %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestFilterByRadiusEmpty(t *testing.T) {
	if got := FilterByRadius(nil, berlinCircle(5)); len(got) != 0 {
		t.Errorf("expected empty result, got %d items", len(got))
	}
}

func TestTruncateDescription(t *testing.T) {
	short := "fresh bread from this morning"
	if got := TruncateDescription(short); got != short {
		t.Errorf("short description modified: %q", got)
	}

	long := strings.Repeat("x", DescriptionPreviewLen+50)
	if got := TruncateDescription(long); len(got) != DescriptionPreviewLen {
		t.Errorf("expected length %d, got %d", DescriptionPreviewLen, len(got))
	}

	// 3-byte runes: the preview length of 280 lands mid-rune, so the cut
	// must back up instead of emitting a partial encoding.
	multi := strings.Repeat("日", DescriptionPreviewLen)
	got := TruncateDescription(multi)
	if len(got)%3 != 0 || strings.ContainsRune(got, '�') {
		t.Errorf("truncation split a rune, got %d bytes", len(got))
	}
}

func TestPaginate(t *testing.T) {
	items := []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}

	tests := []struct {
		name    string
		offset  int
		limit   int
		wantIDs []string
	}{
		{"first page", 0, 2, []string{"a", "b"}},
		{"second page", 2, 2, []string{"c", "d"}},
		{"partial last page", 3, 10, []string{"d"}},
		{"offset past end", 10, 2, nil},
		{"full", 0, 10, []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(items, tt.offset, tt.limit)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("expected %d items, got %d", len(tt.wantIDs), len(got))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("item %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}
}
