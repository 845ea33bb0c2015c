package handler

import (
	"errors"
	"net/http"

	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// writeServiceError maps a service failure onto a problem response. An
// unknown origin zip is the caller's mistake; everything else means the
// upstream store failed us.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, warehouse.ErrUnknownZip) {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "zip_code", Message: "could not be resolved to coordinates"},
		})
		return
	}
	response.BadGateway(w, r, err.Error())
}
