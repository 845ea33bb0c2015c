// Package coverage analyzes the warehouse network for coverage gaps. It
// groups warehouses by catalog location, scores each location's coverage,
// and derives expansion insights from request demand.
package coverage

import (
	"fmt"
	"time"

	"github.com/depotradar/depotradar/internal/geo"
	"github.com/depotradar/depotradar/internal/recommend"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// Namespace prefixes all coverage cache keys.
const Namespace = "coverage:"

// Cache key prefixes. The filter and radius portion is appended by
// cacheKey.
const (
	keyAnalysisPrefix = "coverage:analysis:"
	keyInsightsPrefix = "coverage:insights:"
)

// InsightsPrecacheKey holds the insight report written by the precache
// orchestrator. Its TTL outlives the canonical entry, so Insights falls
// back to it for unfiltered reads.
const InsightsPrecacheKey = "coverage:insights:precached"

// PrecacheKey returns the cache key holding the precached analysis for a
// radius. Analyze falls back to it for unfiltered reads.
func PrecacheKey(radiusMiles float64) string {
	return fmt.Sprintf("coverage:precached:radius_%g", radiusMiles)
}

const (
	analysisTTL = 30 * time.Minute
	insightsTTL = 30 * time.Minute

	// defaultRadiusMiles is reported as the analysis radius when the
	// caller groups by city only.
	defaultRadiusMiles = 50

	// gapScanRadiusMiles bounds the neighborhood inspected around each
	// warehouse when looking for isolation.
	gapScanRadiusMiles = 50

	// minNearbyWarehouses is the coverage floor. A location whose
	// warehouses have fewer neighbors than this is a gap.
	minNearbyWarehouses = 3
)

// Expansion opportunity levels.
const (
	ExpansionNone     = "None"
	ExpansionModerate = "Moderate"
	ExpansionHigh     = "High"
)

// Request trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// NearbySummary is the short form of a warehouse shown inside a location
// metric. Distance is the mean distance to the other warehouses in the
// same location group.
type NearbySummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Tier     string  `json:"tier"`
	Distance float64 `json:"distance"`
}

// LocationMetric is the scored coverage picture for one location group.
type LocationMetric struct {
	Location                   string          `json:"location"`
	City                       string          `json:"city"`
	State                      string          `json:"state"`
	Population                 int             `json:"population"`
	Latitude                   float64         `json:"latitude"`
	Longitude                  float64         `json:"longitude"`
	NearbyWarehouses           []NearbySummary `json:"nearbyWarehouses"`
	MinimumDistance            float64         `json:"minimumDistance"`
	WarehouseCount             int             `json:"warehouseCount"`
	GoldCount                  int             `json:"goldWarehouseCount"`
	SilverCount                int             `json:"silverWarehouseCount"`
	BronzeCount                int             `json:"bronzeWarehouseCount"`
	UntieredCount              int             `json:"unTieredWarehouseCount"`
	CoverageDensityScore       float64         `json:"coverageDensityScore"`
	PopulationWeightedGapScore float64         `json:"populationWeightedGapScore"`
	HasCoverageGap             bool            `json:"hasCoverageGap"`
	ExpansionOpportunity       string          `json:"expansionOpportunity"`
	WarehousesPer100SqMi       float64         `json:"warehousesPer100SqMiles"`
	RequestCount               int             `json:"reqCount"`
}

// Analysis is the full coverage gap analysis result.
type Analysis struct {
	Warehouses           []warehouse.Warehouse `json:"warehouses"`
	Locations            []LocationMetric      `json:"coverageAnalysis"`
	AverageDailyRequests int                   `json:"average_number_of_requests"`
	TotalWarehouses      int                   `json:"totalWarehouses"`
	TotalRequests        int                   `json:"totalRequests"`
	AnalysisRadius       float64               `json:"analysisRadius"`
}

// Gap is a location whose warehouses lack nearby backup coverage.
type Gap struct {
	Location        string  `json:"location"`
	City            string  `json:"city"`
	State           string  `json:"state"`
	WarehouseCount  int     `json:"warehouseCount"`
	MinimumDistance float64 `json:"minimumDistance"`
	GapScore        float64 `json:"gapScore"`
}

// HighRequestArea is a location ranked by request volume. CoverageRatio
// relates warehouse supply to demand; below 1.0 demand outpaces supply.
type HighRequestArea struct {
	Location       string  `json:"location"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	RequestCount   int     `json:"requestCount"`
	WarehouseCount int     `json:"warehouseCount"`
	CoverageRatio  float64 `json:"coverageRatio"`
}

// RequestTrends compares recent request volume against the preceding
// windows of the same length.
type RequestTrends struct {
	PastWeekChange    int    `json:"pastWeekChange"`
	Past3MonthsChange int    `json:"past3MonthsChange"`
	TrendDirection    string `json:"trendDirection"`
}

// InsightReport is the demand-side view of the network: gaps, hot areas,
// trends, and suggested actions.
type InsightReport struct {
	CoverageGaps     []Gap                      `json:"coverageGaps"`
	HighRequestAreas []HighRequestArea          `json:"highRequestAreas"`
	RequestTrends    RequestTrends              `json:"requestTrends"`
	Recommendations  []recommend.Recommendation `json:"recommendations"`
}

// Group is a set of warehouses sharing a catalog location, plus any
// pulled in by radius expansion. Center is the authoritative catalog
// coordinate, zero when the location is not in the catalog.
type Group struct {
	Key           string
	City          string
	State         string
	Center        geo.Coordinate
	Warehouses    []warehouse.Warehouse
	TotalRequests int
}
