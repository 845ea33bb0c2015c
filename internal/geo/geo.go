// Package geo provides great-circle distance math over warehouse coordinates.
package geo

import "math"

// earthRadiusMiles is the mean Earth radius used for all distance math.
const earthRadiusMiles = 3958.8

// Coordinate is a latitude/longitude pair in decimal degrees.
// The zero value (0,0) is the upstream sentinel for "position unknown"
// and must never enter distance or center-of-mass computations.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is a usable geographic point.
func (c Coordinate) Valid() bool {
	return c.Lat != 0 || c.Lng != 0
}

// Miles calculates the great-circle distance between two points in miles
// using the Haversine formula.
func Miles(a, b Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	deltaLat := (b.Lat - a.Lat) * math.Pi / 180
	deltaLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMiles * c
}

// Center returns the arithmetic mean of the valid points. The second
// return value is false when no point is valid.
func Center(points []Coordinate) (Coordinate, bool) {
	var sumLat, sumLng float64
	var n int
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		sumLat += p.Lat
		sumLng += p.Lng
		n++
	}
	if n == 0 {
		return Coordinate{}, false
	}
	return Coordinate{Lat: sumLat / float64(n), Lng: sumLng / float64(n)}, true
}
