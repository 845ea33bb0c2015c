// Package handler implements the HTTP handlers of the DepotRadar API.
package handler

import (
	"net/http"
	"time"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
)

// OpsHandler serves the health and readiness probes.
type OpsHandler struct {
	version   string
	buildTime string
}

func NewOpsHandler(version, buildTime string) *OpsHandler {
	return &OpsHandler{version: version, buildTime: buildTime}
}

// HealthCheck is the liveness probe. Build details ride along so a running
// deployment can be identified from the probe output.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck is the readiness probe. The service starts serving from
// cache immediately, so readiness mirrors liveness.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}
