package geospatial

import "math"

const earthRadiusMeters = 6371008.8

// Haversine returns the great-circle distance in meters between two WGS 84
// coordinates.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BoundingBox returns a box enclosing every point within radiusMeters of
// lat/lon. It is a cheap prefilter before Haversine; near the poles the
// longitude span is widened to the whole range.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	minLat, maxLat = math.Max(lat-latDelta, -90), math.Min(lat+latDelta, 90)

	cos := math.Cos(toRad(lat))
	if cos < 1e-6 {
		return minLat, -180, maxLat, 180
	}
	lonDelta := radiusMeters / (111320.0 * cos)
	return minLat, lon - lonDelta, maxLat, lon + lonDelta
}

// RoundCoord rounds a coordinate to the given number of decimals.
func RoundCoord(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
