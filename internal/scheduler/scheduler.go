// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler dispatches jobs on cron schedules, with an optional one-shot
// run shortly after startup. Overlapping runs of the same job are
// skipped rather than queued.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu     sync.Mutex
	timers []*time.Timer
}

// New creates a scheduler. Schedules use the six-field cron format with
// a seconds column, or the @every / @hourly shorthands.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers job on a cron schedule. A positive startupDelay also
// fires the job once that long after Add, so a fresh process does not
// wait a full cycle for its first run. The startup run shares the
// skip-if-running guard with the scheduled runs.
func (s *Scheduler) Add(schedule string, startupDelay time.Duration, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger})).
		Then(cron.FuncJob(func() { s.run(job) }))

	if _, err := s.cron.AddJob(schedule, wrapped); err != nil {
		return fmt.Errorf("register job %s: %w", job.Name(), err)
	}

	if startupDelay > 0 {
		s.mu.Lock()
		s.timers = append(s.timers, time.AfterFunc(startupDelay, wrapped.Run))
		s.mu.Unlock()
	}

	s.logger.Info().
		Str("schedule", schedule).
		Dur("startup_delay", startupDelay).
		Str("job", job.Name()).
		Msg("job registered")
	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Msg("scheduler started")
}

// Stop cancels pending startup runs and stops the scheduler, waiting for
// in-flight scheduled runs to finish. A startup run already in flight is
// not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(job Job) {
	s.logger.Debug().Str("job", job.Name()).Msg("running job")

	if err := job.Run(); err != nil {
		s.logger.Error().Err(err).Str("job", job.Name()).Msg("job failed")
		return
	}
	s.logger.Debug().Str("job", job.Name()).Msg("job finished")
}

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	logger zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
