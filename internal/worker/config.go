// Package worker provides background job processing for DepotRadar.
package worker

import (
	"cmp"
	"os"
	"time"
)

// Config holds worker configuration.
type Config struct {
	// CoverageSchedule is the cron schedule for the radius precache
	// batch (six fields, with seconds).
	CoverageSchedule string

	// InsightsSchedule is the cron schedule for the insights precache.
	// Staggered after the coverage batch so the two jobs never compete
	// for the Airtable rate limit.
	InsightsSchedule string

	// CoverageStartupDelay and InsightsStartupDelay fire each job once
	// shortly after boot, so a fresh deployment serves warm results
	// without waiting for the nightly run.
	CoverageStartupDelay time.Duration
	InsightsStartupDelay time.Duration

	// JobTimeout bounds a single job run.
	JobTimeout time.Duration
}

// DefaultConfig returns the default worker configuration: the coverage
// batch at 02:00 UTC, insights at 03:30 UTC.
func DefaultConfig() Config {
	return Config{
		CoverageSchedule:     "0 0 2 * * *",
		InsightsSchedule:     "0 30 3 * * *",
		CoverageStartupDelay: 30 * time.Second,
		InsightsStartupDelay: 2 * time.Minute,
		JobTimeout:           10 * time.Minute,
	}
}

// ConfigFromEnv creates a Config from environment variables, falling
// back to DefaultConfig values.
func ConfigFromEnv() Config {
	defaults := DefaultConfig()

	coverageDelay, _ := time.ParseDuration(cmp.Or(os.Getenv("PRECACHE_COVERAGE_STARTUP_DELAY"), "30s"))
	insightsDelay, _ := time.ParseDuration(cmp.Or(os.Getenv("PRECACHE_INSIGHTS_STARTUP_DELAY"), "2m"))
	timeout, _ := time.ParseDuration(cmp.Or(os.Getenv("PRECACHE_JOB_TIMEOUT"), "10m"))

	cfg := Config{
		CoverageSchedule:     cmp.Or(os.Getenv("PRECACHE_COVERAGE_SCHEDULE"), defaults.CoverageSchedule),
		InsightsSchedule:     cmp.Or(os.Getenv("PRECACHE_INSIGHTS_SCHEDULE"), defaults.InsightsSchedule),
		CoverageStartupDelay: coverageDelay,
		InsightsStartupDelay: insightsDelay,
		JobTimeout:           timeout,
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}
	return cfg
}
