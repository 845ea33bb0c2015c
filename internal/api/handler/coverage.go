package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/coverage"
)

// CoverageHandler handles coverage gap analysis endpoints.
type CoverageHandler struct {
	service *coverage.Service
}

// NewCoverageHandler creates a new CoverageHandler.
func NewCoverageHandler(service *coverage.Service) *CoverageHandler {
	return &CoverageHandler{service: service}
}

// Analyze handles POST /v1/coverage/analysis - run a coverage gap analysis.
func (h *CoverageHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	radius, ok := radiusQuery(w, r)
	if !ok {
		return
	}

	filters, ok := decodeFilters(w, r)
	if !ok {
		return
	}

	analysis, err := h.service.Analyze(r.Context(), filters, radius, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Success(analysis))
}

// AnalyzeStream handles POST /v1/coverage/analysis/stream - the same
// analysis delivered as Server-Sent Events with progress updates.
func (h *CoverageHandler) AnalyzeStream(w http.ResponseWriter, r *http.Request) {
	radius, ok := radiusQuery(w, r)
	if !ok {
		return
	}

	filters, ok := decodeFilters(w, r)
	if !ok {
		return
	}

	stream := h.service.AnalyzeStream(r.Context(), filters, radius, false)
	streamEvents(w, r, stream)
}

// Insights handles POST /v1/coverage/insights - gaps, high-request areas,
// trends, and recommendations.
func (h *CoverageHandler) Insights(w http.ResponseWriter, r *http.Request) {
	filters, ok := decodeFilters(w, r)
	if !ok {
		return
	}

	report, err := h.service.Insights(r.Context(), filters, false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Success(report))
}

// decodeFilters reads the optional {filters} request body. An empty body
// analyzes the whole network.
func decodeFilters(w http.ResponseWriter, r *http.Request) (coverage.Filters, bool) {
	var input models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return coverage.Filters{}, false
	}
	return input.Filters, true
}

// radiusQuery parses the optional radius query parameter. Absent means
// grouping by city only, without radius expansion.
func radiusQuery(w http.ResponseWriter, r *http.Request) (float64, bool) {
	raw := r.URL.Query().Get("radius")
	if raw == "" {
		return 0, true
	}

	radius, err := strconv.ParseFloat(raw, 64)
	if err != nil || radius < 0 {
		response.BadRequest(w, r, "radius must be a non-negative number", []models.FieldError{
			{Field: "radius", Message: "must be a non-negative number"},
		})
		return 0, false
	}
	return radius, true
}
