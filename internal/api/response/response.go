// Package response writes API responses: JSON payloads on success,
// RFC 7807 problem documents on failure.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/depotradar/depotradar/internal/api/middleware"
	"github.com/depotradar/depotradar/internal/api/models"
)

// JSON writes a JSON response with the given status, echoing the
// request ID in X-Request-Id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204 with no body.
func NoContent(w http.ResponseWriter, r *http.Request) {
	writeRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a problem document, stamping the request path as the
// problem instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

// Unauthorized writes a 401 problem.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(requestID(r), detail))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(requestID(r), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(requestID(r), detail))
}

// BadGateway writes a 502 problem for upstream failures.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUpstreamError(requestID(r), detail))
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

func writeRequestID(w http.ResponseWriter, r *http.Request) {
	if id := requestID(r); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}
