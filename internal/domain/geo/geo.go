// Package geo provides great-circle distance math and radius filtering for
// search results carrying coordinates.
package geo

import "math"

// EarthRadiusKM is the mean radius of Earth used for Haversine distance.
const EarthRadiusKM = 6371.0

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Circle is a center point with a radius in kilometers.
type Circle struct {
	Center   Point
	RadiusKM float64
}

// Valid reports whether latitude is in [-90,90], longitude in [-180,180] and
// the radius is positive.
func (c Circle) Valid() bool {
	return c.Center.Lat >= -90 && c.Center.Lat <= 90 &&
		c.Center.Lng >= -180 && c.Center.Lng <= 180 &&
		c.RadiusKM > 0
}

// HaversineKM returns the great-circle distance in kilometers between two points.
func HaversineKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKM * c
}

// RoundKM rounds a distance to two decimal places for display.
func RoundKM(km float64) float64 {
	return math.Round(km*100) / 100
}
