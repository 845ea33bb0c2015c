// Package retry provides the shared retry-with-backoff helper for
// operations against flaky upstreams.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
)

// Policy parameterizes Do.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	// (default: 3).
	MaxRetries int

	// BaseDelay is the wait before the first retry; each subsequent wait
	// doubles (default: 5s, giving 5s/10s/20s for three retries).
	BaseDelay time.Duration

	// Clock is the time source for backoff waits (default: real clock).
	Clock clockwork.Clock

	// OnRetry, when set, is invoked before each backoff wait with the
	// error that triggered it, the retry attempt number (1-based) and the
	// upcoming delay.
	OnRetry func(err error, attempt int, delay time.Duration)
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 5 * time.Second
	}
	if p.Clock == nil {
		p.Clock = clockwork.NewRealClock()
	}
	return p
}

// Do runs op, retrying failures up to p.MaxRetries times with exponential
// backoff. It returns the number of retries performed and the last error
// (nil on success). Waits are cooperative: a cancelled context interrupts
// the wait and returns ctx.Err(). An error wrapped with backoff.Permanent
// stops retrying immediately.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) (int, error) {
	p = p.withDefaults()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.BaseDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxInterval = p.BaseDelay << uint(p.MaxRetries)
	policy.MaxElapsedTime = 0
	policy.Reset()

	err := op(ctx)
	retries := 0
	for err != nil && retries < p.MaxRetries {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return retries, permanent.Unwrap()
		}

		retries++
		delay := policy.NextBackOff()
		if p.OnRetry != nil {
			p.OnRetry(err, retries, delay)
		}

		select {
		case <-ctx.Done():
			return retries - 1, ctx.Err()
		case <-p.Clock.After(delay):
		}

		err = op(ctx)
	}
	return retries, err
}
