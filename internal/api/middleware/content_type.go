package middleware

import (
	"net/http"
	"strings"

	"github.com/depotradar/depotradar/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
// Handlers that serve another type, such as the analysis event stream, set
// their own header before the first write and win.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects bodied requests that declare a non-JSON content type.
// A request without a Content-Type header passes through and is left to the
// handler's decoder.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bodied(r.Method) {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				problem := models.Problem{
					Type:     models.ProblemTypeUnsupported,
					Title:    "Unsupported Media Type",
					Status:   http.StatusUnsupportedMediaType,
					Detail:   "request bodies must be application/json",
					Instance: r.URL.Path,
					TraceID:  GetRequestID(r.Context()),
				}
				problem.Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func bodied(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
