// Package api builds the DepotRadar HTTP router and owns its middleware
// stack.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/api/handler"
	"github.com/depotradar/depotradar/internal/api/middleware"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/featureflags"
	"github.com/depotradar/depotradar/internal/precache"
	"github.com/depotradar/depotradar/internal/warehouse"
)

// RouterConfig carries everything the router needs to mount the API.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	WarehouseService   *warehouse.Service
	CoverageService    *coverage.Service
	Precache           *precache.Orchestrator
	FeatureFlagService *featureflags.Service
	WebhookSecret      string
}

// NewRouter assembles the middleware stack and mounts every API route.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if cfg.ServiceName == "" {
		cfg.ServiceName = "depotradar-api"
	}

	// Ordering constraints: the request ID must exist before tracing,
	// metrics, and logging read it, and Recovery sits inside those
	// layers so a panic still produces a span and a log line.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.ServiceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS) // honored when REQUIRE_TLS=true
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime)
	coverageHandler := handler.NewCoverageHandler(cfg.CoverageService)
	warehouseHandler := handler.NewWarehouseHandler(cfg.WarehouseService)
	precacheHandler := handler.NewPrecacheHandler(cfg.Precache)
	cacheHandler := handler.NewCacheHandler(cfg.WarehouseService, cfg.CoverageService)
	webhookHandler := handler.NewWebhookHandler(cfg.WarehouseService, cfg.CoverageService, cfg.WebhookSecret, cfg.Logger)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	// Two rate-limit tiers: analysis and precache runs burn upstream
	// geocoding quota, everything else is cheap to serve.
	expensive := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standard := middleware.RateLimitByIP(middleware.StandardRateLimit)

	// Unversioned aliases for load balancer probes
	r.Get("/healthz", opsHandler.HealthCheck)
	r.Get("/readyz", opsHandler.ReadinessCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.Route("/coverage", func(r chi.Router) {
			r.Use(expensive)
			r.Post("/analysis", coverageHandler.Analyze)
			r.Post("/analysis/stream", coverageHandler.AnalyzeStream)
			r.Post("/insights", coverageHandler.Insights)
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.Use(standard)
			r.Get("/", warehouseHandler.List)
			r.Post("/nearby", warehouseHandler.Nearby)
		})

		// Precache runs are expensive, status reads are not.
		r.Route("/precache", func(r chi.Router) {
			r.With(expensive).Post("/run", precacheHandler.Run)
			r.With(expensive).Post("/insights/stream", precacheHandler.StreamInsights)
			r.With(standard).Get("/insights/last-run", precacheHandler.LastInsightsRun)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Use(standard)
			r.Get("/stats", cacheHandler.Stats)
			r.Post("/invalidate", cacheHandler.Invalidate)
		})

		// Upstream change notifications
		r.With(standard).Post("/webhooks/airtable", webhookHandler.AirtableNotify)

		r.Route("/admin", func(r chi.Router) {
			r.Use(standard)
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
