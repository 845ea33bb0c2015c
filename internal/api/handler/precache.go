package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/precache"
)

// PrecacheHandler handles precache orchestration endpoints.
type PrecacheHandler struct {
	orchestrator *precache.Orchestrator
}

// NewPrecacheHandler creates a new PrecacheHandler.
func NewPrecacheHandler(orchestrator *precache.Orchestrator) *PrecacheHandler {
	return &PrecacheHandler{orchestrator: orchestrator}
}

// Run handles POST /v1/precache/run - warm the analysis cache for every
// configured radius and report per-radius outcomes.
func (h *PrecacheHandler) Run(w http.ResponseWriter, r *http.Request) {
	results := h.orchestrator.RunAll(r.Context())

	byRadius := make(map[string]string, len(results))
	for radius, status := range results {
		byRadius[fmt.Sprintf("%g", radius)] = status
	}

	response.JSON(w, r, http.StatusOK, models.PrecacheRunResult{
		Results:     byRadius,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// StreamInsights handles POST /v1/precache/insights/stream - refresh the
// precached insight report, streaming progress as Server-Sent Events.
func (h *PrecacheHandler) StreamInsights(w http.ResponseWriter, r *http.Request) {
	stream := h.orchestrator.StreamInsights(r.Context())
	streamEvents(w, r, stream)
}

// LastInsightsRun handles GET /v1/precache/insights/last-run - timestamp
// of the last completed insights refresh.
func (h *PrecacheHandler) LastInsightsRun(w http.ResponseWriter, r *http.Request) {
	ts, ok := h.orchestrator.LastInsightsRun()
	if !ok {
		response.NotFound(w, r, "no precache run recorded")
		return
	}

	response.JSON(w, r, http.StatusOK, models.PrecacheLastRun{LastPrecacheTimestamp: ts})
}
