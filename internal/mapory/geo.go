package mapory

import (
	"github.com/golang/geo/s2"

	"mapory/internal/model"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371008.8

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b model.LatLng) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude, a.Longitude)
	p2 := s2.LatLngFromDegrees(b.Latitude, b.Longitude)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}
