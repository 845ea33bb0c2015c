package models

// NearbyRequest is the body for the nearby warehouse search. A zero
// radius searches the default 50 miles.
type NearbyRequest struct {
	ZipCode     string  `json:"zip_code"`
	RadiusMiles float64 `json:"radius_miles"`
}
