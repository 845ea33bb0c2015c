package models

import (
	"encoding/json"
	"net/http"
)

// problemBase is the URL prefix under which the problem types are
// documented.
const problemBase = "https://api.depotradar.io/problems/"

// Problem type URIs for every error class the API emits.
const (
	ProblemTypeValidation      = problemBase + "validation-error"
	ProblemTypeUnauthorized    = problemBase + "unauthorized"
	ProblemTypeNotFound        = problemBase + "not-found"
	ProblemTypeTooManyRequests = problemBase + "too-many-requests"
	ProblemTypeInternal        = problemBase + "internal-error"
	ProblemTypeUpstream        = problemBase + "upstream-error"
	ProblemTypeUnsupported     = problemBase + "unsupported-media-type"
	ProblemTypeTLSRequired     = problemBase + "tls-required"
)

// Problem is an RFC 7807 error document, served as
// application/problem+json. TraceID carries the request ID so a client
// report can be matched to server logs.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError pins a validation failure to one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Write serializes the problem with its status code and trace header.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest builds a 400 validation problem.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return &Problem{
		Type:    ProblemTypeValidation,
		Title:   "Validation error",
		Status:  http.StatusBadRequest,
		Detail:  detail,
		TraceID: traceID,
		Errors:  errors,
	}
}

// NewUnauthorized builds a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return &Problem{
		Type:    ProblemTypeUnauthorized,
		Title:   "Unauthorized",
		Status:  http.StatusUnauthorized,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewNotFound builds a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return &Problem{
		Type:    ProblemTypeNotFound,
		Title:   "Not found",
		Status:  http.StatusNotFound,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewTooManyRequests builds a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return &Problem{
		Type:    ProblemTypeTooManyRequests,
		Title:   "Too many requests",
		Status:  http.StatusTooManyRequests,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewInternalError builds a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return &Problem{
		Type:    ProblemTypeInternal,
		Title:   "Internal server error",
		Status:  http.StatusInternalServerError,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewUpstreamError builds a 502 problem for failures of the external
// stores this service reads from.
func NewUpstreamError(traceID, detail string) *Problem {
	return &Problem{
		Type:    ProblemTypeUpstream,
		Title:   "Upstream error",
		Status:  http.StatusBadGateway,
		Detail:  detail,
		TraceID: traceID,
	}
}
