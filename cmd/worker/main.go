// Package main boots the DepotRadar precache worker. It runs the
// scheduled coverage and insights precache jobs, optionally accepts
// Pub/Sub run triggers, and serves a health endpoint with job stats.
package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/api/middleware"
	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/catalog"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/geocode"
	"github.com/depotradar/depotradar/internal/precache"
	"github.com/depotradar/depotradar/internal/scheduler"
	"github.com/depotradar/depotradar/internal/telemetry"
	"github.com/depotradar/depotradar/internal/warehouse"
	"github.com/depotradar/depotradar/internal/warehouse/airtable"
	"github.com/depotradar/depotradar/internal/worker"
)

// Set at release builds via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "depotradar-worker"

	// Load .env for local development; deployed environments inject the
	// variables through the platform.
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()
	log.Info().Str("build_time", BuildTime).Msg("starting DepotRadar worker")

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

	// Without the city catalog the catalog-wide gap scan is skipped.
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

	// Build the service graph the precache jobs run against
	cacheService := cache.NewService(cache.ServiceConfig{Logger: log})

	warehouseService := warehouse.NewService(warehouse.ServiceConfig{
		Provider: airtableClient,
		Geocoder: geocode.NewClient(geocode.ClientConfig{}),
		Cache:    cacheService,
		Logger:   log,
	})

	coverageService := coverage.NewService(coverage.ServiceConfig{
		Source:  warehouseService,
		Catalog: cityCatalog,
		Cache:   cacheService,
		Logger:  log,
	})

	orchestrator := precache.NewOrchestrator(precache.OrchestratorConfig{
		Analyzer: coverageService,
		Cache:    cacheService,
		Logger:   log,
	})

	workerCfg := worker.ConfigFromEnv()

	coverageJob := worker.NewCoverageJob(worker.JobConfig{
		Runner:  orchestrator,
		Logger:  log,
		Timeout: workerCfg.JobTimeout,
	})
	insightsJob := worker.NewInsightsJob(worker.JobConfig{
		Runner:  orchestrator,
		Logger:  log,
		Timeout: workerCfg.JobTimeout,
	})

	sched := scheduler.New(log)
	if err := sched.Add(workerCfg.CoverageSchedule, workerCfg.CoverageStartupDelay, coverageJob); err != nil {
		log.Fatal().Err(err).Msg("cannot schedule coverage precache")
	}
	if err := sched.Add(workerCfg.InsightsSchedule, workerCfg.InsightsStartupDelay, insightsJob); err != nil {
		log.Fatal().Err(err).Msg("cannot schedule insights precache")
	}
	sched.Start()

	// The Pub/Sub trigger path is optional; without it the worker runs
	// on schedule alone.
	var pubsubHandler *worker.PubSubHandler
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Jobs:             []worker.Job{coverageJob, insightsJob},
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("pubsub handler init failed")
		}

		go func() {
			if receiveErr := pubsubHandler.Start(ctx); receiveErr != nil && !errors.Is(receiveErr, context.Canceled) {
				log.Error().Err(receiveErr).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub triggers not configured, running on schedule only")
	}

	// Health endpoint with job stats, for container platform probes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"jobs": map[string]worker.JobStats{
				coverageJob.Name(): coverageJob.Stats(),
				insightsJob.Name(): insightsJob.Stats(),
			},
		})
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("listener failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sched.Stop()
	if pubsubHandler != nil {
		if err := pubsubHandler.Close(); err != nil {
			log.Error().Err(err).Msg("pubsub close failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("worker stopped")
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
