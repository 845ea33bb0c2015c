// Package warehouse provides canonical warehouse records, request
// statistics, and nearby-warehouse search backed by a remote tabular store.
package warehouse

import (
	"errors"
	"strings"
	"time"

	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/geo"
)

// Service errors.
var (
	ErrUnknownZip = errors.New("unknown zip code")
)

// Cache namespaces owned by this package. Other packages sharing the same
// cache use their own prefixes, so invalidation stays scoped.
const (
	NamespaceWarehouses = "warehouses:"
	NamespaceRequests   = "requests:"
)

// Cache keys.
const (
	keyMaster             = "warehouses:master"
	keyRequestCounts      = "requests:by_warehouse"
	keyRequestsByLocation = "requests:by_location"
	keyRequestTotals      = "requests:total"
	keyMonthlyAverage     = "requests:monthly_average"
)

// Standard tier values as they appear in the store.
const (
	TierGold          = "Gold"
	TierPotentialGold = "Potential Gold"
	TierSilver        = "Silver"
	TierBronze        = "Bronze"
)

// StandardTiers lists the four tier values recognized for reporting.
// Anything else, including blank, counts as untiered.
var StandardTiers = []string{TierGold, TierPotentialGold, TierSilver, TierBronze}

// IsStandardTier reports whether tier is one of the four standard values,
// compared exactly as stored.
func IsStandardTier(tier string) bool {
	for _, t := range StandardTiers {
		if tier == t {
			return true
		}
	}
	return false
}

// TierRank orders tiers for nearby-search sorting. Lower is better:
// gold 0, silver 1, bronze 2, anything else 99. Potential Gold is not a
// nearby-search priority tier and ranks with the rest.
func TierRank(tier string) int {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "gold":
		return 0
	case "silver":
		return 1
	case "bronze":
		return 2
	default:
		return 99
	}
}

// Record is a raw record from the tabular store: an identity, a creation
// timestamp, and a loosely-typed field bag. Only Normalize reads Fields.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// Warehouse is the canonical record shape used by every downstream
// computation. Capability fields hold possibly-comma-joined strings so
// filter matching can split them into sets.
type Warehouse struct {
	ID          string `json:"id"`
	WarehouseID string `json:"warehouse_id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zipCode"`
	Status      string `json:"status"`
	Tier        string `json:"tier"`

	geo.Coordinate

	Hazmat         string `json:"hazmat"`
	Disposal       string `json:"disposal"`
	TempControlled string `json:"warehouseTempControlled"`
	FoodGrade      string `json:"foodGrade"`
	PaperClamps    string `json:"paperClamps"`
	ParkingSpots   string `json:"parkingSpots"`

	RequestCount int `json:"reqCount"`
}

// completenessFields are the record fields checked when tagging
// nearby-search results with data-quality gaps.
var completenessFields = []struct {
	name  string
	value func(w Warehouse) string
}{
	{"City", func(w Warehouse) string { return w.City }},
	{"State", func(w Warehouse) string { return w.State }},
	{"ZIP", func(w Warehouse) string { return w.Zip }},
	{"Status", func(w Warehouse) string { return w.Status }},
	{"Tier", func(w Warehouse) string { return w.Tier }},
	{"Hazmat", func(w Warehouse) string { return w.Hazmat }},
	{"Disposal", func(w Warehouse) string { return w.Disposal }},
	{"Warehouse Temp Controlled", func(w Warehouse) string { return w.TempControlled }},
	{"Food Grade", func(w Warehouse) string { return w.FoodGrade }},
	{"Paper Clamps", func(w Warehouse) string { return w.PaperClamps }},
	{"Parking Spots", func(w Warehouse) string { return w.ParkingSpots }},
}

// MissingFields returns the names of fields that are empty on this record.
func (w Warehouse) MissingFields() []string {
	missing := []string{}
	for _, f := range completenessFields {
		if f.value(w) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// RequestTotals carries the total request count and the creation timestamps
// needed for monthly averages and trend windows.
type RequestTotals struct {
	Total   int
	Created []time.Time
}

// NearbyWarehouse is a warehouse annotated for radius search results.
type NearbyWarehouse struct {
	Warehouse

	DistanceMiles    float64  `json:"distance_miles"`
	TierRank         int      `json:"tier_rank"`
	Tags             []string `json:"tags"`
	HasMissingFields bool     `json:"has_missed_fields"`
}

// CacheReport summarizes cache health for operators.
type CacheReport struct {
	Stats             cache.Stats `json:"cache_stats"`
	LastUpstreamCheck time.Time   `json:"last_upstream_check"`
	CacheAgeHours     float64     `json:"cache_age_hours"`
	Recommendations   []string    `json:"recommendations"`
}
