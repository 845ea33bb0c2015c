package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// WebhookHandler handles upstream change notifications.
type WebhookHandler struct {
	warehouses *warehouse.Service
	analysis   *coverage.Service
	secret     string
	logger     zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. With an empty secret,
// notifications are accepted unauthenticated.
func NewWebhookHandler(warehouses *warehouse.Service, analysis *coverage.Service, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		warehouses: warehouses,
		analysis:   analysis,
		secret:     secret,
		logger:     logger,
	}
}

// AirtableNotify handles POST /v1/webhooks/airtable - a change ping from
// the upstream base. The ping carries no record data, so the response is
// to drop the warehouse-derived caches and let the next read refetch.
func (h *WebhookHandler) AirtableNotify(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get("X-Webhook-Secret") != h.secret {
		response.Unauthorized(w, r, "invalid webhook secret")
		return
	}

	var ping models.WebhookPing
	if err := json.NewDecoder(r.Body).Decode(&ping); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	removed := h.warehouses.Invalidate() + h.analysis.Invalidate()

	h.logger.Info().
		Str("base_id", ping.Base.ID).
		Str("webhook_id", ping.Webhook.ID).
		Int("removed_entries", removed).
		Msg("upstream change notification, caches invalidated")

	response.JSON(w, r, http.StatusAccepted, models.WebhookAck{
		Status:  "accepted",
		Removed: removed,
	})
}
