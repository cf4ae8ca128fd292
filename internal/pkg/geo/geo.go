package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean earth radius used by Distance.
const EarthRadiusMeters = 6371000

// ErrLocationUnavailable is returned when a coordinate was never loaded (0,0).
var ErrLocationUnavailable = errors.New("location unavailable")

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether p is the (0,0) placeholder of an unloaded position.
func (p Point) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// Valid reports whether p lies inside the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Within reports whether p lies inside the circle of radiusMeters around center.
// A point exactly on the boundary is inside.
func Within(p, center Point, radiusMeters float64) (bool, float64, error) {
	if p.IsZero() || center.IsZero() {
		return false, 0, ErrLocationUnavailable
	}
	d := Distance(p, center)
	return d <= radiusMeters, d, nil
}

// Offset returns the point reached by moving meters along bearingDegrees from p.
// Used to build fixtures at exact distances.
func Offset(p Point, meters, bearingDegrees float64) Point {
	delta := meters / EarthRadiusMeters
	theta := toRadians(bearingDegrees)
	lat1 := toRadians(p.Latitude)
	lon1 := toRadians(p.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	return Point{Latitude: toDegrees(lat2), Longitude: toDegrees(lon2)}
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}

func toDegrees(rad float64) float64 {
	return rad * (180.0 / math.Pi)
}
