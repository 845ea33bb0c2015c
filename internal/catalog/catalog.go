// Package catalog loads the reference list of known US cities used for
// catalog-wide coverage analysis. The list is generated offline from zip
// code data; every city appears once, keyed "City,State", with the mean
// coordinate of its zip codes.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/depotradar/depotradar/internal/geo"
)

// Location is a known US city with its mean coordinate and zip codes.
// A (0, 0) coordinate means the generator had no coordinates for it.
type Location struct {
	City      string   `json:"city"`
	State     string   `json:"state"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Zipcodes  []string `json:"zipcodes"`
}

// Coordinate returns the location's coordinate pair.
func (l Location) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: l.Latitude, Lng: l.Longitude}
}

// Key returns the catalog key for a city and state.
func Key(city, state string) string {
	return city + "," + state
}

// Catalog is an immutable keyed collection of known locations with
// deterministic iteration order (state, then city).
type Catalog struct {
	locations map[string]Location
	ordered   []Location
}

// New builds a catalog from a list of locations. Later duplicates of the
// same key replace earlier ones.
func New(locations []Location) *Catalog {
	byKey := make(map[string]Location, len(locations))
	for _, loc := range locations {
		byKey[Key(loc.City, loc.State)] = loc
	}

	ordered := make([]Location, 0, len(byKey))
	for _, loc := range byKey {
		ordered = append(ordered, loc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].State != ordered[j].State {
			return ordered[i].State < ordered[j].State
		}
		return ordered[i].City < ordered[j].City
	})

	return &Catalog{locations: byKey, ordered: ordered}
}

type citiesFile struct {
	TotalCities int        `json:"total_cities"`
	Cities      []Location `json:"cities"`
}

// Load reads a catalog from the generated cities JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cities file: %w", err)
	}

	var file citiesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse cities file: %w", err)
	}

	return New(file.Cities), nil
}

// Lookup returns the location for a city and state.
func (c *Catalog) Lookup(city, state string) (Location, bool) {
	loc, ok := c.locations[Key(city, state)]
	return loc, ok
}

// Len returns the number of locations.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// Locations returns all locations in deterministic order. Callers must not
// modify the returned slice.
func (c *Catalog) Locations() []Location {
	return c.ordered
}
