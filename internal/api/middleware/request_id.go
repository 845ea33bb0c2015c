// Package middleware provides the HTTP middleware stack for the DepotRadar
// API: request IDs, logging, tracing, metrics, rate limits, and security
// headers.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKeyRequestID struct{}

// RequestID tags each request with an identifier that is echoed in the
// X-Request-Id response header and carried through the context. An
// X-Request-Id supplied by the caller is kept, so IDs stay stable across
// proxies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = "req_" + uuid.NewString()[:22]
		}

		w.Header().Set("X-Request-Id", id)

		ctx := context.WithValue(r.Context(), ctxKeyRequestID{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the ID stored by RequestID, or "" when the
// middleware did not run.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}
