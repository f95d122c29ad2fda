package utils

import (
	"math"
	"strings"

	"github.com/mmcloughlin/geohash"
)

const (
	// earthRadiusKm is the mean Earth radius used by the haversine helpers
	earthRadiusKm = 6371.0
	// geohashAlphabet is the base32 alphabet of geohash cells
	geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"
)

// GeoPoint represents a geographical point with latitude and longitude
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// EncodeGeohash returns the geohash cell of a point at the given precision
func EncodeGeohash(point GeoPoint, precision uint) string {
	return geohash.EncodeWithPrecision(point.Latitude, point.Longitude, precision)
}

// ValidGeohash reports whether hash only uses the geohash base32 alphabet
func ValidGeohash(hash string) bool {
	if hash == "" || len(hash) > 12 {
		return false
	}
	for _, r := range strings.ToLower(hash) {
		if !strings.ContainsRune(geohashAlphabet, r) {
			return false
		}
	}
	return true
}

// InCell reports whether the point falls inside the geohash cell prefix
func InCell(point GeoPoint, prefix string) bool {
	prefix = strings.ToLower(prefix)
	return strings.HasPrefix(EncodeGeohash(point, uint(len(prefix))), prefix)
}

// CalculateDistance calculates the distance between two points in kilometers using the Haversine formula
func CalculateDistance(point1, point2 GeoPoint) float64 {
	lat1 := toRadians(point1.Latitude)
	lon1 := toRadians(point1.Longitude)
	lat2 := toRadians(point2.Latitude)
	lon2 := toRadians(point2.Longitude)

	dLat := lat2 - lat1
	dLon := lon2 - lon1
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// Bearing returns the initial course from point1 to point2 in degrees, [0, 360)
func Bearing(point1, point2 GeoPoint) float64 {
	lat1 := toRadians(point1.Latitude)
	lat2 := toRadians(point2.Latitude)
	dLon := toRadians(point2.Longitude - point1.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(deg+360, 360)
}

// Interpolate returns the point at fraction f (0..1) of the straight segment
// between two points. Good enough for the short legs of a replay route.
func Interpolate(point1, point2 GeoPoint, f float64) GeoPoint {
	if f <= 0 {
		return point1
	}
	if f >= 1 {
		return point2
	}
	return GeoPoint{
		Latitude:  point1.Latitude + (point2.Latitude-point1.Latitude)*f,
		Longitude: point1.Longitude + (point2.Longitude-point1.Longitude)*f,
	}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
