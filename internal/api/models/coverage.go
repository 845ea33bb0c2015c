package models

import "github.com/depotradar/depotradar/internal/coverage"

// AnalysisRequest is the body for the coverage analysis and insights
// endpoints. The filter set is optional; an empty body analyzes the
// whole network.
type AnalysisRequest struct {
	Filters coverage.Filters `json:"filters"`
}
