// Package main boots the DepotRadar API server.
package main

import (
	"cmp"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/api"
	"github.com/depotradar/depotradar/internal/api/middleware"
	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/featureflags"
	"github.com/depotradar/depotradar/internal/geocode"
	"github.com/depotradar/depotradar/internal/precache"
	"github.com/depotradar/depotradar/internal/telemetry"
	"github.com/depotradar/depotradar/internal/warehouse"
	"github.com/depotradar/depotradar/internal/warehouse/airtable"
)

// Set at release builds via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "depotradar-api"

	// Load .env for local development; deployed environments inject the
	// variables through the platform.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
	log.Info().Str("build_time", BuildTime).Msg("starting DepotRadar API")

	port := cmp.Or(os.Getenv("APP_PORT"), "8080")
	env := cmp.Or(os.Getenv("APP_ENV"), "development")
	airtableToken := mustEnv(log, "AIRTABLE_TOKEN")
	airtableBaseID := mustEnv(log, "AIRTABLE_BASE_ID")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelEndpoint := cmp.Or(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "localhost:4317")
	otelOn := os.Getenv("OTEL_ENABLED") == "true"
	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otelEndpoint,
		Enabled:        otelOn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry init failed")
	}
	defer flushTelemetry(tp, log)
	if otelOn {
		log.Info().Str("collector", otelEndpoint).Msg("telemetry exporting")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("metrics init failed")
	}

	// Airtable is the warehouse source of record; its client reports
	// per-call metrics when the meter is available.
	airtableCfg := airtable.ClientConfig{
		Token:  airtableToken,
		BaseID: airtableBaseID,
	}
	if providerMetrics, metricsErr := middleware.NewProviderMetrics(airtable.ProviderName); metricsErr != nil {
		log.Error().Err(metricsErr).Msg("provider metrics unavailable")
	} else {
		airtableCfg.Metrics = providerMetrics
	}
	airtableClient := airtable.NewClient(airtableCfg)
	log.Info().Str("base_id", airtableBaseID).Msg("airtable provider ready")

	// Without the city catalog analyses still run, only the catalog-wide
	// gap scan is skipped.
	var cityCatalog *catalog.Catalog
	citiesPath := os.Getenv("US_CITIES_PATH")
	if citiesPath == "" {
		log.Warn().Msg("US_CITIES_PATH not set, catalog gap scan disabled")
	} else if cityCatalog, err = catalog.Load(citiesPath); err != nil {
		log.Warn().Err(err).Str("path", citiesPath).Msg("city catalog unreadable, catalog gap scan disabled")
		cityCatalog = nil
	} else {
		log.Info().Int("cities", cityCatalog.Len()).Msg("city catalog loaded")
	}

	cacheService := cache.NewService(cache.ServiceConfig{Logger: log})

	warehouseService := warehouse.NewService(warehouse.ServiceConfig{
		Provider: airtableClient,
		Geocoder: geocode.NewClient(geocode.ClientConfig{}),
		Cache:    cacheService,
		Logger:   log,
	})
	log.Info().Msg("warehouse service ready")

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     log,
		CacheTTL:   time.Minute,
	})

	coverageService := coverage.NewService(coverage.ServiceConfig{
		Source:  warehouseService,
		Catalog: cityCatalog,
		Cache:   cacheService,
		Flags:   ffService,
		Logger:  log,
	})
	log.Info().Msg("coverage service ready")

	orchestrator := precache.NewOrchestrator(precache.OrchestratorConfig{
		Analyzer: coverageService,
		Cache:    cacheService,
		Logger:   log,
	})
	log.Info().Msg("precache orchestrator ready")

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		WarehouseService:   warehouseService,
		CoverageService:    coverageService,
		Precache:           orchestrator,
		FeatureFlagService: ffService,
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
	})

	// No write timeout: the streaming endpoints hold the response open
	// for the whole analysis run.
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("api listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("listener failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info().Msg("api stopped")
}

// mustEnv reads a required variable and aborts startup when it is
// missing.
func mustEnv(log zerolog.Logger, key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("var", key).Msg("required environment variable missing")
	}
	return value
}

// flushTelemetry drains buffered spans and metrics on exit, bounded so
// a dead collector cannot hang shutdown.
func flushTelemetry(tp *telemetry.Provider, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown failed")
	}
}
