package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/depotradar/depotradar/internal/precache"
)

// Runner is the slice of the precache orchestrator the jobs drive.
type Runner interface {
	RunAll(ctx context.Context) map[float64]string
	RunInsights(ctx context.Context) (int, error)
}

// JobConfig holds configuration for creating a job.
type JobConfig struct {
	Runner Runner
	Logger zerolog.Logger

	// Timeout bounds one run. Default: 10 minutes.
	Timeout time.Duration
}

func (cfg JobConfig) withDefaults() JobConfig {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return cfg
}

// JobStats is a snapshot of one job's outcomes.
type JobStats struct {
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	LastRunAt    time.Time     `json:"last_run_at"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}

// jobStats is the mutable counterpart behind a mutex.
type jobStats struct {
	mu    sync.Mutex
	stats JobStats
}

func (s *jobStats) record(start time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Runs++
	s.stats.LastRunAt = start
	s.stats.LastDuration = time.Since(start)
	s.stats.LastError = ""
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	}
}

func (s *jobStats) snapshot() JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// CoverageJob refreshes the precached analysis for every radius.
type CoverageJob struct {
	runner  Runner
	logger  zerolog.Logger
	timeout time.Duration
	stats   jobStats
}

// NewCoverageJob creates the radius precache job.
func NewCoverageJob(cfg JobConfig) *CoverageJob {
	cfg = cfg.withDefaults()
	return &CoverageJob{
		runner:  cfg.Runner,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
	}
}

// Name identifies the job in logs and trigger messages.
func (j *CoverageJob) Name() string { return "coverage_precache" }

// Run refreshes every radius. It fails when any radius exhausted its
// retries, so a triggering message is redelivered and the batch gets
// another chance.
func (j *CoverageJob) Run() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results := j.runner.RunAll(ctx)

	failed := 0
	for _, status := range results {
		if status != precache.StatusSuccess {
			failed++
		}
	}

	var err error
	if failed > 0 {
		err = fmt.Errorf("coverage precache: %d of %d radii failed", failed, len(results))
	}
	j.stats.record(start, err)
	return err
}

// Stats returns a snapshot of the job's outcomes.
func (j *CoverageJob) Stats() JobStats { return j.stats.snapshot() }

// InsightsJob refreshes the precached insight report.
type InsightsJob struct {
	runner  Runner
	logger  zerolog.Logger
	timeout time.Duration
	stats   jobStats
}

// NewInsightsJob creates the insights precache job.
func NewInsightsJob(cfg JobConfig) *InsightsJob {
	cfg = cfg.withDefaults()
	return &InsightsJob{
		runner:  cfg.Runner,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
	}
}

// Name identifies the job in logs and trigger messages.
func (j *InsightsJob) Name() string { return "insights_precache" }

// Run refreshes the insight report, retries included.
func (j *InsightsJob) Run() error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	retries, err := j.runner.RunInsights(ctx)
	if retries > 0 && err == nil {
		j.logger.Info().Int("retries", retries).Msg("insights precache needed retries")
	}
	j.stats.record(start, err)
	return err
}

// Stats returns a snapshot of the job's outcomes.
func (j *InsightsJob) Stats() JobStats { return j.stats.snapshot() }
