package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/api/models"
)

// Recovery converts handler panics into 500 problem documents and logs the
// stack trace.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				cause := recover()
				if cause == nil {
					return
				}

				id := GetRequestID(r.Context())
				log.Error().
					Str("request_id", id).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", cause).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				problem := models.NewInternalError(id, "an unexpected error occurred")
				problem.Instance = r.URL.Path
				problem.Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
