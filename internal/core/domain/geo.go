package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is finite and inside WGS 84 bounds.
func (g GeoPoint) Valid() bool {
	if math.IsNaN(g.Lat) || math.IsNaN(g.Lon) {
		return false
	}
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether g lies inside b (edges included).
func (b Bounds) Contains(g GeoPoint) bool {
	return g.Lat >= b.MinLat && g.Lat <= b.MaxLat && g.Lon >= b.MinLon && g.Lon <= b.MaxLon
}
