package handler

import (
	"net/http"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// CacheHandler handles cache introspection and invalidation endpoints.
type CacheHandler struct {
	warehouses *warehouse.Service
	analysis   *coverage.Service
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(warehouses *warehouse.Service, analysis *coverage.Service) *CacheHandler {
	return &CacheHandler{warehouses: warehouses, analysis: analysis}
}

// Stats handles GET /v1/cache/stats - entry counts, cache age, and
// operator recommendations.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	report := h.warehouses.CacheReport(coverage.Namespace)
	response.JSON(w, r, http.StatusOK, report)
}

// Invalidate handles POST /v1/cache/invalidate - clear the warehouse and
// coverage namespaces so the next read refetches upstream.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	removed := h.warehouses.Invalidate() + h.analysis.Invalidate()

	response.JSON(w, r, http.StatusOK, models.InvalidateResult{
		Status:  "success",
		Message: "Warehouse cache cleared",
		Removed: removed,
	})
}
