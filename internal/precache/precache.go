// Package precache computes coverage results ahead of demand so readers
// always find a warm cache.
//
// Two jobs live here. The radius batch refreshes the unfiltered coverage
// analysis for every configured radius and keeps each result under a
// dedicated key whose TTL outlives the scheduling interval. The insights
// job does the same for the insight report. Both retry failed attempts
// with exponential backoff before giving up, and both record a completion
// timestamp under a long TTL so "when did this last run" survives the
// results themselves expiring.
package precache

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/cache"
	"github.com/depotradar/depotradar/internal/coverage"
	"github.com/depotradar/depotradar/internal/progress"
	"github.com/depotradar/depotradar/internal/retry"
)

// Radii is the set of radius values refreshed by the batch job.
var Radii = []float64{25, 50, 100, 500}

const (
	keyLastRun     = "coverage:precache:last_run"
	keyInsightsRun = "coverage:insights:precache:last_run"

	// resultTTL is one hour longer than the daily schedule so a late run
	// never leaves readers without a precached result.
	resultTTL  = 25 * time.Hour
	lastRunTTL = 30 * 24 * time.Hour

	maxRetries     = 3
	retryBaseDelay = 5 * time.Second
)

// Run statuses reported per radius by RunAll.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Analyzer is the slice of the coverage service the orchestrator drives.
type Analyzer interface {
	Analyze(ctx context.Context, filters coverage.Filters, radiusMiles float64, skipCache bool) (coverage.Analysis, error)
	Insights(ctx context.Context, filters coverage.Filters, skipCache bool) (coverage.InsightReport, error)
}

// InsightsRunResult is the terminal payload emitted by StreamInsights.
type InsightsRunResult struct {
	Message               string `json:"message"`
	Status                string `json:"status"`
	RetriesUsed           int    `json:"retriesUsed"`
	LastPrecacheTimestamp string `json:"lastPrecacheTimestamp"`
}

// OrchestratorConfig carries the dependencies for NewOrchestrator.
type OrchestratorConfig struct {
	Analyzer Analyzer
	Cache    *cache.Service
	Logger   zerolog.Logger

	// Clock is the time source for backoff waits and run timestamps
	// (default: real clock).
	Clock clockwork.Clock
}

// Orchestrator runs the precache jobs.
type Orchestrator struct {
	analyzer Analyzer
	cache    *cache.Service
	logger   zerolog.Logger
	clock    clockwork.Clock
}

// NewOrchestrator creates an Orchestrator from the given configuration.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		analyzer: cfg.Analyzer,
		cache:    cfg.Cache,
		logger:   cfg.Logger.With().Str("component", "precache").Logger(),
		clock:    cfg.Clock,
	}
}

// RunRadius computes the unfiltered analysis for one radius, forcing a
// fresh computation, and stores it under the radius key. Failures are
// retried with exponential backoff before the radius is given up on.
func (o *Orchestrator) RunRadius(ctx context.Context, radiusMiles float64) error {
	retries, err := retry.Do(ctx, o.policy(func(err error, attempt int, delay time.Duration) {
		o.logger.Warn().
			Err(err).
			Float64("radius_miles", radiusMiles).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("radius precache failed, retrying")
	}), func(ctx context.Context) error {
		analysis, err := o.analyzer.Analyze(ctx, coverage.Filters{}, radiusMiles, true)
		if err != nil {
			return err
		}
		o.cache.Set(coverage.PrecacheKey(radiusMiles), analysis, resultTTL)
		return nil
	})
	if err != nil {
		o.logger.Error().
			Err(err).
			Float64("radius_miles", radiusMiles).
			Int("retries", retries).
			Msg("radius precache failed")
		return fmt.Errorf("precache radius %g: %w", radiusMiles, err)
	}

	o.logger.Info().
		Float64("radius_miles", radiusMiles).
		Int("retries", retries).
		Msg("radius precached")
	return nil
}

// RunAll refreshes the analysis for every configured radius and reports
// per-radius status. Radii run sequentially; one exhausting its retries
// does not abort the rest. The batch completion timestamp is recorded
// whatever the individual outcomes.
func (o *Orchestrator) RunAll(ctx context.Context) map[float64]string {
	o.logger.Info().Msg("coverage precache started")

	results := make(map[float64]string, len(Radii))
	failed := 0
	for _, radius := range Radii {
		if err := o.RunRadius(ctx, radius); err != nil {
			results[radius] = StatusFailed
			failed++
			continue
		}
		results[radius] = StatusSuccess
	}

	ts := o.recordRun(keyLastRun)
	o.logger.Info().
		Int("radii", len(Radii)).
		Int("failed", failed).
		Str("completed_at", ts).
		Msg("coverage precache finished")
	return results
}

// RunInsights refreshes the unfiltered insight report, keeping a copy
// under the precache key so readers outlive the service cache expiring.
// It returns the number of retries performed.
func (o *Orchestrator) RunInsights(ctx context.Context) (int, error) {
	retries, err := retry.Do(ctx, o.policy(func(err error, attempt int, delay time.Duration) {
		o.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("insights precache failed, retrying")
	}), o.refreshInsights)
	if err != nil {
		o.logger.Error().Err(err).Int("retries", retries).Msg("insights precache failed")
		return retries, fmt.Errorf("precache insights: %w", err)
	}

	o.logger.Info().Int("retries", retries).Msg("insights precached")
	return retries, nil
}

// StreamInsights runs the insights refresh while narrating progress on
// the returned stream. The refresh is driven by ctx, not by the
// consumer: a caller that stops reading does not stop the run.
func (o *Orchestrator) StreamInsights(ctx context.Context) *progress.Stream {
	stream := progress.New()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error().Interface("panic", r).Msg("insights precache stream panicked")
				stream.Error(fmt.Sprintf("Insights pre-cache failed: %v", r))
			}
		}()

		stream.Log("Starting insights pre-cache job", 0)
		stream.Log("Fetching fresh insights data...", 25)

		attempt := 0
		retries, err := retry.Do(ctx, retry.Policy{
			MaxRetries: maxRetries,
			BaseDelay:  retryBaseDelay,
			Clock:      o.clock,
			OnRetry: func(_ error, n int, delay time.Duration) {
				stream.Log(fmt.Sprintf("Insights pre-cache failed. Retrying (attempt %d/%d)...", n, maxRetries), 50)
				stream.Log(fmt.Sprintf("Waiting %d seconds before retry...", int(delay.Seconds())), 60)
			},
		}, func(ctx context.Context) error {
			attempt++
			if attempt > 1 {
				stream.Log("Retrying insights pre-cache...", 70)
			}
			return o.refreshInsights(ctx)
		})
		if err != nil {
			o.logger.Error().Err(err).Int("retries", retries).Msg("insights precache failed")
			stream.Log(fmt.Sprintf("Insights pre-cache failed after %d retries", maxRetries), 100)
			stream.Error(fmt.Sprintf("Insights pre-cache failed after %d retry attempts", maxRetries))
			return
		}

		timestamp, _ := o.LastInsightsRun()
		o.logger.Info().Int("retries", retries).Msg("insights precached")
		stream.Log("Insights pre-cache completed successfully", 100)
		stream.Data(InsightsRunResult{
			Message:               "Insights pre-cache job completed",
			Status:                StatusSuccess,
			RetriesUsed:           retries,
			LastPrecacheTimestamp: timestamp,
		})
	}()
	return stream
}

// refreshInsights is a single refresh attempt. The success timestamp is
// recorded here so it reflects the attempt that actually landed.
func (o *Orchestrator) refreshInsights(ctx context.Context) error {
	report, err := o.analyzer.Insights(ctx, coverage.Filters{}, true)
	if err != nil {
		return err
	}
	o.cache.Set(coverage.InsightsPrecacheKey, report, resultTTL)
	o.recordRun(keyInsightsRun)
	return nil
}

// LastRun reports when the radius batch last completed.
func (o *Orchestrator) LastRun() (string, bool) {
	return o.timestamp(keyLastRun)
}

// LastInsightsRun reports when the insights refresh last succeeded.
func (o *Orchestrator) LastInsightsRun() (string, bool) {
	return o.timestamp(keyInsightsRun)
}

func (o *Orchestrator) recordRun(key string) string {
	ts := o.clock.Now().UTC().Format(time.RFC3339)
	o.cache.Set(key, ts, lastRunTTL)
	return ts
}

func (o *Orchestrator) timestamp(key string) (string, bool) {
	v, ok := o.cache.Get(key)
	if !ok {
		return "", false
	}
	ts, ok := v.(string)
	return ts, ok
}

func (o *Orchestrator) policy(onRetry func(error, int, time.Duration)) retry.Policy {
	return retry.Policy{
		MaxRetries: maxRetries,
		BaseDelay:  retryBaseDelay,
		Clock:      o.clock,
		OnRetry:    onRetry,
	}
}
