package rules

import (
	"math"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

const earthRadiusKm = 6371.0

// haversine returns the great-circle distance in kilometres.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * (math.Pi / 180.0)
	dLon := (lon2 - lon1) * (math.Pi / 180.0)

	lat1 = lat1 * (math.Pi / 180.0)
	lat2 = lat2 * (math.Pi / 180.0)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Distance is the haversine distance between two locations. ok is false when
// either side lacks coordinates.
func Distance(a, b models.GeoLocation) (km float64, ok bool) {
	lat1, lon1, ok1 := a.Coordinates()
	lat2, lon2, ok2 := b.Coordinates()
	if !ok1 || !ok2 {
		return 0, false
	}
	return haversine(lat1, lon1, lat2, lon2), true
}
