package geodesy

import (
	"math"

	"github.com/paulmach/orb"
)

// earthRadiusM is the mean Earth radius used for great-circle distances.
const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// (longitude, latitude) points given in degrees.
func Haversine(p1, p2 orb.Point) float64 {
	lat1 := p1[1] * math.Pi / 180
	lat2 := p2[1] * math.Pi / 180
	dLat := (p2[1] - p1[1]) * math.Pi / 180
	dLon := (p2[0] - p1[0]) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
