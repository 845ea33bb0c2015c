// Package featureflags holds the runtime toggles that change engine
// behavior without a redeploy.
package featureflags

import "time"

// Flag keys the engine consults.
const (
	// FlagInsightsGenerator routes recommendation generation through the
	// configured external generator instead of the built-in rules.
	FlagInsightsGenerator = "enable_insights_generator"

	// FlagCatalogGapScan extends the coverage gap scan to catalog
	// locations with no warehouses at all.
	FlagCatalogGapScan = "enable_catalog_gap_scan"
)

// Flag is one runtime toggle. Values arrive over JSON, so numbers come in
// as float64 and booleans as bool.
type Flag struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlagList is the payload for listing all flags.
type FlagList struct {
	Items []Flag `json:"items"`
}

// FlagUpdate sets one flag to a new value.
type FlagUpdate struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// FlagUpdateRequest is a batch of flag updates with an audit reason.
type FlagUpdateRequest struct {
	Updates []FlagUpdate `json:"updates"`
	Reason  string       `json:"reason"`
}

// BoolValue coerces the flag value to a bool. A nil flag or a value of
// another type yields fallback. Numbers count as true when non-zero.
func (f *Flag) BoolValue(fallback bool) bool {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	}
	return fallback
}

// StringValue coerces the flag value to a string, or fallback.
func (f *Flag) StringValue(fallback string) string {
	if f == nil {
		return fallback
	}
	if s, ok := f.Value.(string); ok {
		return s
	}
	return fallback
}

// IntValue coerces the flag value to an int, or fallback.
func (f *Flag) IntValue(fallback int) int {
	if f == nil {
		return fallback
	}
	switch v := f.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// clone returns a copy so callers cannot mutate stored flags.
func (f *Flag) clone() *Flag {
	c := *f
	return &c
}

// DefaultFlags is the code-level flag set the service falls back to when
// the repository has nothing newer. The insights generator starts off; the
// catalog gap scan starts on.
func DefaultFlags() map[string]*Flag {
	now := time.Now()
	return map[string]*Flag{
		FlagInsightsGenerator: {Key: FlagInsightsGenerator, Value: false, UpdatedAt: now},
		FlagCatalogGapScan:    {Key: FlagCatalogGapScan, Value: true, UpdatedAt: now},
	}
}
