package geospatial

import (
	"math"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

const (
	earthRadiusKm = 6371.0

	// KmToMiles is the fixed kilometre to statute mile factor.
	KmToMiles = 0.621371
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return haversineKm(lat1, lon1, lat2, lon2) * 1000
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push a a hair past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceKm returns the great-circle distance in kilometres between a and b.
// It fails only when either point is out of range.
func DistanceKm(a, b domain.GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return haversineKm(a.Lat, a.Lon, b.Lat, b.Lon), nil
}

// Bearing returns the initial great-circle bearing from a to b in degrees, [0, 360).
func Bearing(a, b domain.GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Mod(toDeg(math.Atan2(y, x))+360, 360)
	return deg, nil
}

// ToMiles converts kilometres to miles.
func ToMiles(km float64) float64 {
	return km * KmToMiles
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// BoundingBox returns a bounding box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// InBoundingBox reports whether (lat, lon) lies in a box from BoundingBox.
// Longitude bounds past ±180 wrap around the antimeridian, and a box that
// reaches a pole matches every longitude.
func InBoundingBox(lat, lon, minLat, minLon, maxLat, maxLon float64) bool {
	if lat < minLat || lat > maxLat {
		return false
	}
	if minLat <= -90 || maxLat >= 90 || maxLon-minLon >= 360 {
		return true
	}
	switch {
	case minLon < -180:
		return lon >= minLon+360 || lon <= maxLon
	case maxLon > 180:
		return lon >= minLon || lon <= maxLon-360
	default:
		return lon >= minLon && lon <= maxLon
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
