package coverage

import (
	"math"
	"sort"
	"time"

	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/geo"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// FindGaps scans each group for isolated warehouses. A group is a gap
// when any member has fewer than minNearbyWarehouses warehouses from
// other groups within gapScanRadiusMiles; the first such member supplies
// the gap's neighbor count and minimum distance. A member without a
// position counts as having no neighbors at all. Gaps come back sorted
// by score, worst first.
func FindGaps(groups []*Group) []Gap {
	gaps := []Gap{}

	for _, g := range groups {
		for _, member := range g.Warehouses {
			nearby, minDist := neighborhood(member, g.Key, groups)
			if nearby >= minNearbyWarehouses {
				continue
			}

			gaps = append(gaps, Gap{
				Location:        g.Key,
				City:            g.City,
				State:           g.State,
				WarehouseCount:  nearby,
				MinimumDistance: minDist,
				GapScore:        gapScore(g.TotalRequests, nearby),
			})
			break
		}
	}

	sortGaps(gaps)
	return gaps
}

// neighborhood counts positioned warehouses from other groups within the
// gap scan radius of the member, and the distance to the closest one.
func neighborhood(member warehouse.Warehouse, groupKey string, groups []*Group) (int, float64) {
	nearby := 0
	minDist := math.Inf(1)

	if member.Valid() {
		for _, other := range groups {
			if other.Key == groupKey {
				continue
			}
			for _, w := range other.Warehouses {
				if !w.Valid() {
					continue
				}
				d := geo.Miles(member.Coordinate, w.Coordinate)
				if d < minDist {
					minDist = d
				}
				if d <= gapScanRadiusMiles {
					nearby++
				}
			}
		}
	}

	if math.IsInf(minDist, 1) {
		minDist = 0
	}
	return nearby, minDist
}

// gapScore weights demand by isolation: full marks at 10+ requests with
// no neighbors, scaled down as neighbors approach the coverage floor.
func gapScore(requests, nearby int) float64 {
	score := math.Min(float64(requests)/10, 1) * (1 - float64(nearby)/float64(minNearbyWarehouses))
	return math.Max(score, 0)
}

// CatalogGaps extends the gap scan to catalog locations that formed no
// group, using by-location request demand. A location with demand scores
// like a regular gap; one without demand still registers at a fixed low
// score so the map shows it.
func CatalogGaps(cat *catalog.Catalog, grouped map[string]bool, warehouses []warehouse.Warehouse, demand map[string]int) []Gap {
	if cat == nil {
		return nil
	}

	var gaps []Gap
	for _, loc := range cat.Locations() {
		key := catalog.Key(loc.City, loc.State)
		if grouped[key] {
			continue
		}
		center := loc.Coordinate()
		if !center.Valid() {
			continue
		}

		nearby := 0
		minDist := math.Inf(1)
		for _, w := range warehouses {
			if !w.Valid() {
				continue
			}
			d := geo.Miles(center, w.Coordinate)
			if d < minDist {
				minDist = d
			}
			if d <= gapScanRadiusMiles {
				nearby++
			}
		}
		if nearby >= minNearbyWarehouses {
			continue
		}
		if math.IsInf(minDist, 1) {
			minDist = 0
		}

		score := 0.05
		if d := demand[key]; d > 0 {
			score = gapScore(d, nearby)
		}

		gaps = append(gaps, Gap{
			Location:        key,
			City:            loc.City,
			State:           loc.State,
			WarehouseCount:  nearby,
			MinimumDistance: minDist,
			GapScore:        score,
		})
	}

	return gaps
}

func sortGaps(gaps []Gap) {
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].GapScore > gaps[j].GapScore
	})
}

// HighRequestAreas ranks groups with demand by request volume. The
// coverage ratio assumes one warehouse comfortably serves three
// requests.
func HighRequestAreas(groups []*Group) []HighRequestArea {
	areas := []HighRequestArea{}

	for _, g := range groups {
		if g.TotalRequests <= 0 {
			continue
		}
		ratio := float64(len(g.Warehouses)) / (float64(g.TotalRequests) / 3)
		areas = append(areas, HighRequestArea{
			Location:       g.Key,
			City:           g.City,
			State:          g.State,
			RequestCount:   g.TotalRequests,
			WarehouseCount: len(g.Warehouses),
			CoverageRatio:  math.Round(ratio*100) / 100,
		})
	}

	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].RequestCount > areas[j].RequestCount
	})
	return areas
}

// Trends compares the past week and past 90 days of request volume
// against the windows immediately before them. Each window includes its
// start and excludes its end, except the current one which runs through
// now.
func Trends(times []time.Time, now time.Time) RequestTrends {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	quarterAgo := now.AddDate(0, 0, -90)
	twoQuartersAgo := now.AddDate(0, 0, -180)

	week := countBetween(times, weekAgo, now, true) -
		countBetween(times, twoWeeksAgo, weekAgo, false)
	quarter := countBetween(times, quarterAgo, now, true) -
		countBetween(times, twoQuartersAgo, quarterAgo, false)

	direction := TrendStable
	switch {
	case week > 2 && quarter > 10:
		direction = TrendIncreasing
	case week < -2 && quarter < -10:
		direction = TrendDecreasing
	}

	return RequestTrends{
		PastWeekChange:    week,
		Past3MonthsChange: quarter,
		TrendDirection:    direction,
	}
}

func countBetween(times []time.Time, from, to time.Time, inclusiveEnd bool) int {
	n := 0
	for _, t := range times {
		if t.Before(from) {
			continue
		}
		if inclusiveEnd {
			if t.After(to) {
				continue
			}
		} else if !t.Before(to) {
			continue
		}
		n++
	}
	return n
}
