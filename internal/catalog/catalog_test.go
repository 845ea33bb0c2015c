package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotradar/depotradar/internal/catalog"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "us_cities.json")
	content := `{
		"total_cities": 3,
		"cities": [
			{"city": "Springfield", "state": "IL", "latitude": 39.7817, "longitude": -89.6501, "zipcodes": ["62701", "62702"]},
			{"city": "Chicago", "state": "IL", "latitude": 41.8781, "longitude": -87.6298, "zipcodes": ["60601"]},
			{"city": "Phoenix", "state": "AZ", "latitude": 33.4484, "longitude": -112.074, "zipcodes": ["85001"]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := catalog.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())

	loc, ok := c.Lookup("Springfield", "IL")
	require.True(t, ok)
	assert.Equal(t, []string{"62701", "62702"}, loc.Zipcodes)
	assert.InDelta(t, 39.7817, loc.Coordinate().Lat, 1e-9)

	_, ok = c.Lookup("Atlantis", "FL")
	assert.False(t, ok)

	// Iteration is ordered by state, then city.
	locations := c.Locations()
	assert.Equal(t, "Phoenix", locations[0].City)
	assert.Equal(t, "Chicago", locations[1].City)
	assert.Equal(t, "Springfield", locations[2].City)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read cities file")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := catalog.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse cities file")
}

func TestNew_ReplacesDuplicateKeys(t *testing.T) {
	c := catalog.New([]catalog.Location{
		{City: "Springfield", State: "IL", Latitude: 1, Longitude: 1},
		{City: "Springfield", State: "IL", Latitude: 2, Longitude: 2},
	})

	assert.Equal(t, 1, c.Len())
	loc, ok := c.Lookup("Springfield", "IL")
	require.True(t, ok)
	assert.Equal(t, 2.0, loc.Latitude)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Springfield,IL", catalog.Key("Springfield", "IL"))
}
