// Package geo provides great-circle helpers and synthetic location jitter.
package geo

import (
	"math"

	"github.com/ppiankov/drillgrade/internal/model"
)

// EarthRadiusMeters is the mean earth radius used by every calculation here
const EarthRadiusMeters = 6_371_008.8

// Distance returns the great-circle (haversine) distance in meters
func Distance(a, b model.Coordinate) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Destination returns the point reached by travelling meters along the
// initial bearing (degrees clockwise from north) from origin
func Destination(origin model.Coordinate, bearingDeg, meters float64) model.Coordinate {
	delta := meters / EarthRadiusMeters
	theta := radians(bearingDeg)
	phi1 := radians(origin.Lat)
	lambda1 := radians(origin.Lon)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	lon := math.Mod(degrees(lambda2)+540, 360) - 180
	return model.Coordinate{Lat: degrees(phi2), Lon: lon}
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
