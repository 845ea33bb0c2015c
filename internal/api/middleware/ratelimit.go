package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/depotradar/depotradar/internal/api/models"
)

// RateLimitConfig is one rate-limit tier: a request budget per client IP
// over a rolling window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Analysis and precache endpoints keep the warehouse store and the scoring
// engine busy for seconds at a time, so they run on a smaller budget than
// plain reads.
var (
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}
	StandardRateLimit  = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP, as resolved by chi's RealIP
// middleware, and answers over-budget requests with a 429 problem document.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(overLimit(cfg)),
	)
}

// overLimit writes the 429 problem directly: the response package imports
// this one for request IDs, so it cannot be used from here.
func overLimit(cfg RateLimitConfig) http.HandlerFunc {
	// httprate does not expose the exact reset time. The full window is the
	// conservative retry estimate.
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))

	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
		problem.Instance = r.URL.Path

		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
