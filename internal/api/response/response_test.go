package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/depotradar/depotradar/internal/api/middleware"
	"github.com/depotradar/depotradar/internal/api/models"
	"github.com/depotradar/depotradar/internal/api/response"
)

// tracedRequest returns a request that has passed through the RequestID
// middleware, plus a fresh recorder.
func tracedRequest(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var out *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		out = r
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))

	return out, httptest.NewRecorder()
}

func TestJSON(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodGet, "/v1/warehouses")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if id := rec.Header().Get("X-Request-Id"); id == "" {
		t.Error("X-Request-Id missing")
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "hello" {
		t.Errorf("body = %v", body)
	}
}

func TestJSON_NoRequestID(t *testing.T) {
	// A request that never went through the middleware carries no ID.
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"ok": "yes"})

	if id := rec.Header().Get("X-Request-Id"); id != "" {
		t.Errorf("expected no X-Request-Id, got %q", id)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodGet, "/")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected no body, got %q", rec.Body.String())
	}
}

func TestJSON_KeepsClientRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-Id", "req_client_supplied")

	var out *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		out = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	response.JSON(rec, out, http.StatusOK, map[string]string{"status": "ok"})

	if id := rec.Header().Get("X-Request-Id"); id != "req_client_supplied" {
		t.Errorf("X-Request-Id = %q, want the client's ID", id)
	}
}

func TestNoContent(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodDelete, "/")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected no body, got %q", rec.Body.String())
	}
	if id := rec.Header().Get("X-Request-Id"); id == "" {
		t.Error("X-Request-Id missing")
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		wantType   string
	}{
		{
			"bad request",
			func(w http.ResponseWriter, r *http.Request) {
				response.BadRequest(w, r, "validation failed", nil)
			},
			http.StatusBadRequest, models.ProblemTypeValidation,
		},
		{
			"unauthorized",
			func(w http.ResponseWriter, r *http.Request) {
				response.Unauthorized(w, r, "invalid webhook secret")
			},
			http.StatusUnauthorized, models.ProblemTypeUnauthorized,
		},
		{
			"not found",
			func(w http.ResponseWriter, r *http.Request) {
				response.NotFound(w, r, "no such analysis")
			},
			http.StatusNotFound, models.ProblemTypeNotFound,
		},
		{
			"internal error",
			func(w http.ResponseWriter, r *http.Request) {
				response.InternalError(w, r, "something went wrong")
			},
			http.StatusInternalServerError, models.ProblemTypeInternal,
		},
		{
			"bad gateway",
			func(w http.ResponseWriter, r *http.Request) {
				response.BadGateway(w, r, "warehouse store request failed")
			},
			http.StatusBadGateway, models.ProblemTypeUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tracedRequest(t, http.MethodGet, "/v1/probe")
			tt.write(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var problem models.Problem
			if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
				t.Fatalf("decode problem: %v", err)
			}
			if problem.Status != tt.wantStatus {
				t.Errorf("problem.Status = %d, want %d", problem.Status, tt.wantStatus)
			}
			if problem.Type != tt.wantType {
				t.Errorf("problem.Type = %q, want %q", problem.Type, tt.wantType)
			}
			if problem.TraceID == "" {
				t.Error("problem.TraceID must carry the request ID")
			}
			if problem.Instance != "/v1/probe" {
				t.Errorf("problem.Instance = %q, want the request path", problem.Instance)
			}
		})
	}
}

func TestBadRequest_FieldErrors(t *testing.T) {
	req, rec := tracedRequest(t, http.MethodPost, "/v1/warehouses/nearby")

	response.BadRequest(rec, req, "validation failed", []models.FieldError{
		{Field: "zip_code", Message: "is required"},
	})

	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if len(problem.Errors) != 1 {
		t.Fatalf("expected one field error, got %d", len(problem.Errors))
	}
	if problem.Errors[0].Field != "zip_code" {
		t.Errorf("field = %q", problem.Errors[0].Field)
	}
}
