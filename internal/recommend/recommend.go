// Package recommend turns coverage analysis summaries into expansion
// recommendations. The default generator is rule-based and deterministic;
// an external text-generation service can be plugged in behind the same
// interface, with the rules serving as its fallback.
package recommend

import (
	"context"
	"fmt"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Recommendation is a single suggested action with its target locations.
type Recommendation struct {
	Priority        string   `json:"priority"`
	Action          string   `json:"action"`
	TargetLocations []string `json:"targetLocations"`
	Reasoning       string   `json:"reasoning"`
}

// Area is a location with the counts a generator reasons over.
type Area struct {
	Key            string
	RequestCount   int
	WarehouseCount int
	GapScore       float64
}

// Summary is the structured analysis a generator works from. Gaps arrive
// sorted by gap score descending, HighDemand by request count descending.
type Summary struct {
	TotalWarehouses int
	TotalRequests   int
	Gaps            []Area
	HighDemand      []Area
}

// Generator produces recommendations from an analysis summary.
type Generator interface {
	Generate(ctx context.Context, s Summary) ([]Recommendation, error)
}

// Rules is the deterministic rule-based generator. It never fails, so
// callers can fall back to it when an external generator is unavailable.
type Rules struct{}

// Generate derives recommendations purely from the summary's counts.
func (Rules) Generate(_ context.Context, s Summary) ([]Recommendation, error) {
	recommendations := []Recommendation{}

	if len(s.Gaps) > 0 {
		top := topAreas(s.Gaps, 10)
		recommendations = append(recommendations, Recommendation{
			Priority:        PriorityHigh,
			Action:          "Expand warehouse network in underserved areas",
			TargetLocations: keys(top),
			Reasoning:       fmt.Sprintf("Identified %d areas with less than 3 warehouses within 50 miles", len(s.Gaps)),
		})
	}

	if len(s.HighDemand) > 0 {
		top := topAreas(s.HighDemand, 10)
		total := 0
		for _, a := range top {
			total += a.RequestCount
		}
		recommendations = append(recommendations, Recommendation{
			Priority:        PriorityMedium,
			Action:          "Focus on areas with highest request volume",
			TargetLocations: keys(top),
			Reasoning:       fmt.Sprintf("Top 10 areas with %d total requests", total),
		})
	}

	return recommendations, nil
}

func topAreas(areas []Area, n int) []Area {
	if len(areas) < n {
		n = len(areas)
	}
	return areas[:n]
}

func keys(areas []Area) []string {
	out := make([]string, 0, len(areas))
	for _, a := range areas {
		out = append(out, a.Key)
	}
	return out
}
