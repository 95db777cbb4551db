// Package geo provides the pure geospatial validation used by the clock
// service: great-circle distance and geofence classification.
package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// ValidLatitude reports whether lat is within [-90, 90].
func ValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lng is within [-180, 180].
func ValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// Distance returns the great-circle distance between two coordinates in
// meters using the haversine formula.
func Distance(a, b Coordinate) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Policy holds the tunables for geofence classification.
type Policy struct {
	// DefaultRadiusMeters applies when a site has no configured radius.
	DefaultRadiusMeters float64
	// StrictRadiusFactor shrinks the radius for strict-geofence sites.
	// Must be in (0, 1]; 1 disables the tightening.
	StrictRadiusFactor float64
}

// EffectiveRadius resolves the radius a check-in must fall within.
func (p Policy) EffectiveRadius(radiusMeters *float64, strict bool) float64 {
	radius := p.DefaultRadiusMeters
	if radiusMeters != nil && *radiusMeters > 0 {
		radius = *radiusMeters
	}
	if strict && p.StrictRadiusFactor > 0 && p.StrictRadiusFactor < 1 {
		radius *= p.StrictRadiusFactor
	}
	return radius
}

// Check is the outcome of a geofence classification.
type Check struct {
	DistanceMeters float64
	RadiusMeters   float64
	WithinRange    bool
}

// Classify computes the distance from the device location to the site center
// and compares it against the effective radius. Distances equal to the radius
// count as within range.
func (p Policy) Classify(device, site Coordinate, radiusMeters *float64, strict bool) Check {
	distance := Distance(device, site)
	radius := p.EffectiveRadius(radiusMeters, strict)
	return Check{
		DistanceMeters: distance,
		RadiusMeters:   radius,
		WithinRange:    distance <= radius,
	}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
