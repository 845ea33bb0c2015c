package coverage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/geo"
	"github.com/depotradar/depotradar/internal/warehouse"
)

func TestFindGaps_NeighborsComeFromOtherGroupsOnly(t *testing.T) {
	x := &coverage.Group{
		Key: "X,IL", City: "X", State: "IL",
		Warehouses: []warehouse.Warehouse{
			{ID: "x1", Coordinate: geo.Coordinate{Lat: 40.0, Lng: -89.0}},
		},
		TotalRequests: 5,
	}
	// Three warehouses six to fourteen miles from x1. They back each other
	// up but sit in the same group, so for each other they count nothing.
	y := &coverage.Group{
		Key: "Y,IL", City: "Y", State: "IL",
		Warehouses: []warehouse.Warehouse{
			{ID: "y1", Coordinate: geo.Coordinate{Lat: 40.1, Lng: -89.0}},
			{ID: "y2", Coordinate: geo.Coordinate{Lat: 40.15, Lng: -89.0}},
			{ID: "y3", Coordinate: geo.Coordinate{Lat: 40.2, Lng: -89.0}},
		},
		TotalRequests: 20,
	}

	gaps := coverage.FindGaps([]*coverage.Group{x, y})
	require.Len(t, gaps, 1)

	// x1 sees all three Y warehouses, so X is covered. Each Y warehouse
	// sees only x1 across the group line.
	gap := gaps[0]
	assert.Equal(t, "Y,IL", gap.Location)
	assert.Equal(t, 1, gap.WarehouseCount)
	assert.InDelta(t, 6.9, gap.MinimumDistance, 0.2)
	assert.InDelta(t, 1.0*(1-1.0/3), gap.GapScore, 1e-9)
}

func TestFindGaps_IsolatedGroupsSortedByScore(t *testing.T) {
	a := &coverage.Group{
		Key: "Billings,MT", City: "Billings", State: "MT",
		Warehouses:    []warehouse.Warehouse{{ID: "a1", Coordinate: geo.Coordinate{Lat: 45.8, Lng: -108.5}}},
		TotalRequests: 4,
	}
	b := &coverage.Group{
		Key: "Miami,FL", City: "Miami", State: "FL",
		Warehouses:    []warehouse.Warehouse{{ID: "b1", Coordinate: geo.Coordinate{Lat: 25.76, Lng: -80.19}}},
		TotalRequests: 12,
	}

	gaps := coverage.FindGaps([]*coverage.Group{a, b})
	require.Len(t, gaps, 2)

	// Worst first: twelve requests saturate the demand term.
	assert.Equal(t, "Miami,FL", gaps[0].Location)
	assert.InDelta(t, 1.0, gaps[0].GapScore, 1e-9)
	assert.Equal(t, 0, gaps[0].WarehouseCount)
	assert.Greater(t, gaps[0].MinimumDistance, 1000.0)

	assert.Equal(t, "Billings,MT", gaps[1].Location)
	assert.InDelta(t, 0.4, gaps[1].GapScore, 1e-9)
}

func TestFindGaps_UnpositionedMemberFlagsGroup(t *testing.T) {
	p := &coverage.Group{
		Key: "P,IL", City: "P", State: "IL",
		Warehouses: []warehouse.Warehouse{
			{ID: "p1", Coordinate: geo.Coordinate{Lat: 40.0, Lng: -89.0}},
			{ID: "p2"}, // no position
		},
		TotalRequests: 10,
	}
	q := &coverage.Group{
		Key: "Q,IL", City: "Q", State: "IL",
		Warehouses: []warehouse.Warehouse{
			{ID: "q1", Coordinate: geo.Coordinate{Lat: 40.05, Lng: -89.0}},
			{ID: "q2", Coordinate: geo.Coordinate{Lat: 40.1, Lng: -89.0}},
			{ID: "q3", Coordinate: geo.Coordinate{Lat: 40.15, Lng: -89.0}},
		},
		TotalRequests: 1,
	}

	gaps := coverage.FindGaps([]*coverage.Group{p, q})

	var pGap *coverage.Gap
	for i := range gaps {
		if gaps[i].Location == "P,IL" {
			pGap = &gaps[i]
		}
	}
	// p1 is well covered, but the unpositioned p2 counts as having no
	// neighbors at all.
	require.NotNil(t, pGap)
	assert.Equal(t, 0, pGap.WarehouseCount)
	assert.Equal(t, 0.0, pGap.MinimumDistance)
}

func TestCatalogGaps(t *testing.T) {
	cat := catalog.New([]catalog.Location{
		{City: "Covered", State: "IL", Latitude: 40.0, Longitude: -89.0},
		{City: "Demand", State: "MT", Latitude: 46.0, Longitude: -109.0},
		{City: "Quiet", State: "ND", Latitude: 47.0, Longitude: -100.0},
		{City: "Grouped", State: "TX", Latitude: 32.8, Longitude: -96.8},
		{City: "Unmapped", State: "AK"}, // no coordinates
	})
	warehouses := []warehouse.Warehouse{
		{ID: "c1", Coordinate: geo.Coordinate{Lat: 40.05, Lng: -89.0}},
		{ID: "c2", Coordinate: geo.Coordinate{Lat: 40.1, Lng: -89.0}},
		{ID: "c3", Coordinate: geo.Coordinate{Lat: 40.15, Lng: -89.0}},
	}
	grouped := map[string]bool{"Grouped,TX": true}
	demand := map[string]int{"Demand,MT": 8}

	gaps := coverage.CatalogGaps(cat, grouped, warehouses, demand)
	require.Len(t, gaps, 2)

	byKey := map[string]coverage.Gap{}
	for _, g := range gaps {
		byKey[g.Location] = g
	}

	// Demand scales the score like a regular gap scan.
	demandGap := byKey["Demand,MT"]
	assert.Equal(t, 0, demandGap.WarehouseCount)
	assert.InDelta(t, 0.8, demandGap.GapScore, 1e-9)
	assert.Greater(t, demandGap.MinimumDistance, 100.0)

	// No demand still registers at the fixed base score.
	quietGap := byKey["Quiet,ND"]
	assert.InDelta(t, 0.05, quietGap.GapScore, 1e-9)

	// Covered has three warehouses in range; Grouped and the uncharted
	// location are skipped.
	assert.NotContains(t, byKey, "Covered,IL")
	assert.NotContains(t, byKey, "Grouped,TX")
	assert.NotContains(t, byKey, "Unmapped,AK")
}

func TestHighRequestAreas(t *testing.T) {
	groups := []*coverage.Group{
		{Key: "B,IL", City: "B", State: "IL", Warehouses: make([]warehouse.Warehouse, 2), TotalRequests: 7},
		{Key: "A,IL", City: "A", State: "IL", Warehouses: make([]warehouse.Warehouse, 2), TotalRequests: 30},
		{Key: "C,IL", City: "C", State: "IL", Warehouses: make([]warehouse.Warehouse, 4), TotalRequests: 0},
	}

	areas := coverage.HighRequestAreas(groups)
	require.Len(t, areas, 2)

	// Busiest first; a group without requests does not rank.
	assert.Equal(t, "A,IL", areas[0].Location)
	assert.Equal(t, 30, areas[0].RequestCount)
	assert.InDelta(t, 0.2, areas[0].CoverageRatio, 1e-9)

	// 2 warehouses for 7 requests: 2/(7/3) rounds to 0.86.
	assert.Equal(t, "B,IL", areas[1].Location)
	assert.InDelta(t, 0.86, areas[1].CoverageRatio, 1e-9)
}

func TestTrends(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("increasing", func(t *testing.T) {
		var times []time.Time
		for i := 0; i < 4; i++ {
			times = append(times, now.Add(-time.Duration(i)*day))
		}
		for i := 0; i < 11; i++ {
			times = append(times, now.Add(-30*day))
		}

		trends := coverage.Trends(times, now)
		assert.Equal(t, 4, trends.PastWeekChange)
		assert.Equal(t, 15, trends.Past3MonthsChange)
		assert.Equal(t, coverage.TrendIncreasing, trends.TrendDirection)
	})

	t.Run("decreasing", func(t *testing.T) {
		var times []time.Time
		for i := 0; i < 4; i++ {
			times = append(times, now.Add(-10*day))
		}
		for i := 0; i < 15; i++ {
			times = append(times, now.Add(-120*day))
		}

		trends := coverage.Trends(times, now)
		assert.Equal(t, -4, trends.PastWeekChange)
		assert.Equal(t, -11, trends.Past3MonthsChange)
		assert.Equal(t, coverage.TrendDecreasing, trends.TrendDirection)
	})

	t.Run("stable on small movement", func(t *testing.T) {
		times := []time.Time{now.Add(-day), now.Add(-10 * day)}
		trends := coverage.Trends(times, now)
		assert.Equal(t, 0, trends.PastWeekChange)
		assert.Equal(t, coverage.TrendStable, trends.TrendDirection)
	})

	t.Run("window boundaries", func(t *testing.T) {
		// Exactly seven days ago belongs to the current week, exactly
		// fourteen to the previous one.
		times := []time.Time{now.Add(-7 * day), now.Add(-14 * day)}
		trends := coverage.Trends(times, now)
		assert.Equal(t, 0, trends.PastWeekChange)

		times = []time.Time{now.Add(-7 * day)}
		trends = coverage.Trends(times, now)
		assert.Equal(t, 1, trends.PastWeekChange)
	})

	t.Run("no data", func(t *testing.T) {
		trends := coverage.Trends(nil, now)
		assert.Equal(t, 0, trends.PastWeekChange)
		assert.Equal(t, 0, trends.Past3MonthsChange)
		assert.Equal(t, coverage.TrendStable, trends.TrendDirection)
	})
}
