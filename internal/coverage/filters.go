package coverage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/depotradar/depotradar/internal/warehouse"
)

// Filters narrows the warehouse set before analysis. All fields are
// optional; the zero value matches everything.
//
// Tier matching is case-insensitive with two aliases: requesting "Gold"
// also matches "Potential Gold", and "Un-tiered" (or "Untiered")
// matches every warehouse outside the standard tiers. State and city
// compare exactly. Capability filters match case-insensitively against
// the warehouse's comma-separated value list; one shared value is
// enough.
type Filters struct {
	Tier           []string `json:"tier,omitempty"`
	State          string   `json:"state,omitempty"`
	City           string   `json:"city,omitempty"`
	Hazmat         []string `json:"hazmat,omitempty"`
	Disposal       []string `json:"disposal,omitempty"`
	TempControlled []string `json:"warehouseTempControlled,omitempty"`
	FoodGrade      []string `json:"foodGrade,omitempty"`
	PaperClamps    []string `json:"paperClamps,omitempty"`
	ParkingSpots   []string `json:"parkingSpots,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f Filters) IsZero() bool {
	return len(f.Tier) == 0 && f.State == "" && f.City == "" &&
		len(f.Hazmat) == 0 && len(f.Disposal) == 0 &&
		len(f.TempControlled) == 0 && len(f.FoodGrade) == 0 &&
		len(f.PaperClamps) == 0 && len(f.ParkingSpots) == 0
}

// Apply returns the warehouses matching every set filter field, in the
// original order.
func (f Filters) Apply(warehouses []warehouse.Warehouse) []warehouse.Warehouse {
	if f.IsZero() {
		return warehouses
	}

	matched := make([]warehouse.Warehouse, 0, len(warehouses))
	for _, w := range warehouses {
		if f.matches(w) {
			matched = append(matched, w)
		}
	}
	return matched
}

func (f Filters) matches(w warehouse.Warehouse) bool {
	if len(f.Tier) > 0 && !matchesTier(f.Tier, w.Tier) {
		return false
	}
	if f.State != "" && w.State != f.State {
		return false
	}
	if f.City != "" && w.City != f.City {
		return false
	}
	if len(f.Hazmat) > 0 && !matchesAny(f.Hazmat, w.Hazmat) {
		return false
	}
	if len(f.Disposal) > 0 && !matchesAny(f.Disposal, w.Disposal) {
		return false
	}
	if len(f.TempControlled) > 0 && !matchesAny(f.TempControlled, w.TempControlled) {
		return false
	}
	if len(f.FoodGrade) > 0 && !matchesAny(f.FoodGrade, w.FoodGrade) {
		return false
	}
	if len(f.PaperClamps) > 0 && !matchesAny(f.PaperClamps, w.PaperClamps) {
		return false
	}
	if len(f.ParkingSpots) > 0 && !matchesAny(f.ParkingSpots, w.ParkingSpots) {
		return false
	}
	return true
}

// matchesTier reports whether the warehouse tier satisfies any of the
// requested tiers.
func matchesTier(want []string, tier string) bool {
	have := strings.ToUpper(strings.TrimSpace(tier))
	for _, t := range want {
		switch w := strings.ToUpper(strings.TrimSpace(t)); w {
		case "GOLD":
			if have == "GOLD" || have == "POTENTIAL GOLD" {
				return true
			}
		case "UN-TIERED", "UNTIERED":
			if untiered(have) {
				return true
			}
		default:
			if have == w {
				return true
			}
		}
	}
	return false
}

// untiered reports whether an upper-cased tier is blank or falls
// outside the standard set.
func untiered(have string) bool {
	if have == "" {
		return true
	}
	for _, t := range warehouse.StandardTiers {
		if strings.ToUpper(t) == have {
			return false
		}
	}
	return true
}

// matchesAny reports whether any requested value appears among the
// comma-separated tokens of the warehouse's own value, ignoring case
// and surrounding whitespace.
func matchesAny(filter []string, value string) bool {
	have := make(map[string]bool)
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			have[p] = true
		}
	}

	for _, want := range filter {
		if w := strings.ToLower(strings.TrimSpace(want)); w != "" && have[w] {
			return true
		}
	}
	return false
}

// canonical renders the set filter fields as JSON with sorted keys so
// equal filters always produce the same cache key.
func (f Filters) canonical() string {
	set := map[string]any{}
	if len(f.Tier) > 0 {
		set["tier"] = f.Tier
	}
	if f.State != "" {
		set["state"] = f.State
	}
	if f.City != "" {
		set["city"] = f.City
	}
	if len(f.Hazmat) > 0 {
		set["hazmat"] = f.Hazmat
	}
	if len(f.Disposal) > 0 {
		set["disposal"] = f.Disposal
	}
	if len(f.TempControlled) > 0 {
		set["warehouseTempControlled"] = f.TempControlled
	}
	if len(f.FoodGrade) > 0 {
		set["foodGrade"] = f.FoodGrade
	}
	if len(f.PaperClamps) > 0 {
		set["paperClamps"] = f.PaperClamps
	}
	if len(f.ParkingSpots) > 0 {
		set["parkingSpots"] = f.ParkingSpots
	}

	if len(set) == 0 {
		return "no_filters"
	}

	// Map keys marshal in sorted order.
	b, err := json.Marshal(set)
	if err != nil {
		return "no_filters"
	}
	return string(b)
}

// cacheKey builds the cache key for an analysis variant from its filter
// set and grouping radius.
func cacheKey(prefix string, f Filters, radiusMiles float64) string {
	suffix := "_no_radius"
	if radiusMiles > 0 {
		suffix = fmt.Sprintf("_radius_%g", radiusMiles)
	}
	return prefix + f.canonical() + suffix
}
