package coverage

import (
	"math"
	"strings"

	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/geo"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// BuildGroups groups warehouses by their "City,State" key. Warehouses
// missing either field stay out of the grouping. With a positive radius
// each group also pulls in warehouses within radiusMiles of its center,
// and catalog locations that formed no group of their own become groups
// when at least one warehouse sits within the radius. Group order is
// deterministic: first appearance, then catalog order.
func BuildGroups(warehouses []warehouse.Warehouse, cat *catalog.Catalog, radiusMiles float64) []*Group {
	byKey := make(map[string]*Group)
	var groups []*Group

	for _, w := range warehouses {
		city := strings.TrimSpace(w.City)
		state := strings.TrimSpace(w.State)
		if city == "" || state == "" {
			continue
		}

		key := catalog.Key(city, state)
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, City: city, State: state}
			if cat != nil {
				if loc, found := cat.Lookup(city, state); found {
					g.Center = loc.Coordinate()
				}
			}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.add(w)
	}

	if radiusMiles > 0 {
		expandGroups(groups, warehouses, radiusMiles)
		groups = appendCatalogGroups(groups, byKey, cat, warehouses, radiusMiles)
	}

	return groups
}

func (g *Group) add(w warehouse.Warehouse) {
	g.Warehouses = append(g.Warehouses, w)
	g.TotalRequests += w.RequestCount
}

// expansionCenter is the point a group expands around: the catalog
// coordinate when known, otherwise the mean of the members' positions.
func (g *Group) expansionCenter() (geo.Coordinate, bool) {
	if g.Center.Valid() {
		return g.Center, true
	}

	coords := make([]geo.Coordinate, 0, len(g.Warehouses))
	for _, w := range g.Warehouses {
		coords = append(coords, w.Coordinate)
	}
	return geo.Center(coords)
}

// expandGroups pulls every warehouse within radiusMiles of a group's
// center into that group. A warehouse can join several groups but never
// the same group twice.
func expandGroups(groups []*Group, warehouses []warehouse.Warehouse, radiusMiles float64) {
	for _, g := range groups {
		center, ok := g.expansionCenter()
		if !ok {
			continue
		}

		present := make(map[string]bool, len(g.Warehouses))
		for _, w := range g.Warehouses {
			present[w.ID] = true
		}

		for _, w := range warehouses {
			if present[w.ID] || !w.Valid() {
				continue
			}
			if geo.Miles(center, w.Coordinate) <= radiusMiles {
				g.add(w)
				present[w.ID] = true
			}
		}
	}
}

// appendCatalogGroups creates groups for catalog locations no warehouse
// claims as home, so coverage reaching them from neighboring cities still
// shows up. Locations with nothing in range are skipped.
func appendCatalogGroups(groups []*Group, byKey map[string]*Group, cat *catalog.Catalog, warehouses []warehouse.Warehouse, radiusMiles float64) []*Group {
	if cat == nil {
		return groups
	}

	for _, loc := range cat.Locations() {
		key := catalog.Key(loc.City, loc.State)
		if _, ok := byKey[key]; ok {
			continue
		}
		center := loc.Coordinate()
		if !center.Valid() {
			continue
		}

		g := &Group{Key: key, City: loc.City, State: loc.State, Center: center}
		for _, w := range warehouses {
			if !w.Valid() {
				continue
			}
			if geo.Miles(center, w.Coordinate) <= radiusMiles {
				g.add(w)
			}
		}
		if len(g.Warehouses) == 0 {
			continue
		}

		byKey[key] = g
		groups = append(groups, g)
	}

	return groups
}

// Score computes the coverage metric for one group.
func Score(g *Group) LocationMetric {
	n := len(g.Warehouses)
	requests := g.TotalRequests

	avg := 0.0
	if n > 0 {
		avg = float64(requests) / float64(n)
	}

	var gold, silver, bronze, untiered int
	for _, w := range g.Warehouses {
		switch w.Tier {
		case warehouse.TierGold, warehouse.TierPotentialGold:
			gold++
		case warehouse.TierSilver:
			silver++
		case warehouse.TierBronze:
			bronze++
		default:
			untiered++
		}
	}

	// Estimated service area grows with warehouse count but never drops
	// below 50 square miles.
	area := math.Max(float64(n)*25, 50)

	coord := g.Center
	if !coord.Valid() && n > 0 {
		coord = g.Warehouses[0].Coordinate
	}

	return LocationMetric{
		Location:                   g.Key,
		City:                       g.City,
		State:                      g.State,
		Population:                 50000 + requests*1000,
		Latitude:                   coord.Lat,
		Longitude:                  coord.Lng,
		NearbyWarehouses:           nearbySummaries(g.Warehouses),
		MinimumDistance:            minimumPairDistance(g.Warehouses),
		WarehouseCount:             n,
		GoldCount:                  gold,
		SilverCount:                silver,
		BronzeCount:                bronze,
		UntieredCount:              untiered,
		CoverageDensityScore:       math.Min(avg/10, 1),
		PopulationWeightedGapScore: math.Min(avg/20, 1),
		HasCoverageGap:             n < 2 || avg > 20,
		ExpansionOpportunity:       expansionOpportunity(n, requests, avg),
		WarehousesPer100SqMi:       float64(n) / area * 100,
		RequestCount:               requests,
	}
}

// expansionOpportunity rates a location by how underserved it is. The
// first matching rule wins.
func expansionOpportunity(n, requests int, avg float64) string {
	switch {
	case avg > 25:
		return ExpansionHigh
	case n == 1 && requests > 10:
		return ExpansionHigh
	case n == 1 && requests > 3:
		return ExpansionModerate
	case n < 3 && requests > 15:
		return ExpansionModerate
	case avg > 15:
		return ExpansionModerate
	default:
		return ExpansionNone
	}
}

// minimumPairDistance is the closest spacing between any two positioned
// members, zero when fewer than two are positioned.
func minimumPairDistance(members []warehouse.Warehouse) float64 {
	positioned := make([]warehouse.Warehouse, 0, len(members))
	for _, w := range members {
		if w.Valid() {
			positioned = append(positioned, w)
		}
	}
	if len(positioned) < 2 {
		return 0
	}

	min := math.Inf(1)
	for i := 0; i < len(positioned); i++ {
		for j := i + 1; j < len(positioned); j++ {
			if d := geo.Miles(positioned[i].Coordinate, positioned[j].Coordinate); d < min {
				min = d
			}
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

// nearbySummaries lists up to three members with each one's mean distance
// to the rest of the group.
func nearbySummaries(members []warehouse.Warehouse) []NearbySummary {
	limit := 3
	if len(members) < limit {
		limit = len(members)
	}

	summaries := make([]NearbySummary, 0, limit)
	for _, w := range members[:limit] {
		summaries = append(summaries, NearbySummary{
			ID:       w.ID,
			Name:     w.Name,
			Tier:     w.Tier,
			Distance: meanDistance(w, members),
		})
	}
	return summaries
}

func meanDistance(w warehouse.Warehouse, members []warehouse.Warehouse) float64 {
	if !w.Valid() {
		return 0
	}

	total := 0.0
	count := 0
	for _, other := range members {
		if other.ID == w.ID || !other.Valid() {
			continue
		}
		total += geo.Miles(w.Coordinate, other.Coordinate)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
