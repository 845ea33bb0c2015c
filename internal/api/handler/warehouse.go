package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// defaultNearbyRadiusMiles applies when a nearby search omits the radius.
const defaultNearbyRadiusMiles = 50

// WarehouseHandler handles warehouse listing and search endpoints.
type WarehouseHandler struct {
	service *warehouse.Service
}

// NewWarehouseHandler creates a new WarehouseHandler.
func NewWarehouseHandler(service *warehouse.Service) *WarehouseHandler {
	return &WarehouseHandler{service: service}
}

// List handles GET /v1/warehouses - the normalized warehouse list.
func (h *WarehouseHandler) List(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.Warehouses(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Success(warehouses))
}

// Nearby handles POST /v1/warehouses/nearby - warehouses within a radius
// of an origin zip code, best tier and shortest distance first.
func (h *WarehouseHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	var input models.NearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	zip := strings.TrimSpace(input.ZipCode)
	if zip == "" {
		response.BadRequest(w, r, "zip_code is required", []models.FieldError{
			{Field: "zip_code", Message: "is required"},
		})
		return
	}
	if input.RadiusMiles < 0 {
		response.BadRequest(w, r, "radius_miles must be a non-negative number", []models.FieldError{
			{Field: "radius_miles", Message: "must be a non-negative number"},
		})
		return
	}

	radius := input.RadiusMiles
	if radius == 0 {
		radius = defaultNearbyRadiusMiles
	}

	nearby, err := h.service.Nearby(r.Context(), zip, radius)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.Success(nearby))
}
