package geospatial

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	// Saint-Denis to Saint-Pierre, La Réunion: about 51 km.
	d := Haversine(-20.8789, 55.4481, -21.3393, 55.4781)
	if d < 50000 || d > 52000 {
		t.Errorf("unexpected distance %.0f m", d)
	}
	if Haversine(-21, 55.5, -21, 55.5) != 0 {
		t.Error("distance to self must be zero")
	}
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	lat, lon, r := -21.1, 55.5, 2000.0
	minLat, minLon, maxLat, maxLon := BoundingBox(lat, lon, r)

	north := Haversine(lat, lon, maxLat, lon)
	east := Haversine(lat, lon, lat, maxLon)
	if math.Abs(north-r) > 20 || math.Abs(east-r) > 20 {
		t.Errorf("box edges at %.0f m / %.0f m, want ~%.0f m", north, east, r)
	}
	if minLat >= lat || minLon >= lon {
		t.Error("box must extend south and west")
	}
}

func TestBoundingBox_Pole(t *testing.T) {
	_, minLon, maxLat, maxLon := BoundingBox(90, 10, 1000)
	if minLon != -180 || maxLon != 180 || maxLat != 90 {
		t.Errorf("unexpected polar box lon [%v,%v] maxLat %v", minLon, maxLon, maxLat)
	}
}

func TestRoundCoord(t *testing.T) {
	if got := RoundCoord(55.123456, 4); got != 55.1235 {
		t.Errorf("got %v", got)
	}
}
