package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotradar/depotradar/internal/retry"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	retries, err := retry.Do(context.Background(), retry.Policy{}, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesWithExponentialDelays(t *testing.T) {
	clock := clockwork.NewFakeClock()

	var delays []time.Duration
	calls := 0
	done := make(chan struct{})

	var retries int
	var err error
	go func() {
		defer close(done)
		retries, err = retry.Do(context.Background(), retry.Policy{
			MaxRetries: 3,
			BaseDelay:  5 * time.Second,
			Clock:      clock,
			OnRetry: func(_ error, _ int, delay time.Duration) {
				delays = append(delays, delay)
			},
		}, func(context.Context) error {
			calls++
			return errors.New("upstream down")
		})
	}()

	for _, step := range []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second} {
		clock.BlockUntil(1)
		clock.Advance(step)
	}
	<-done

	require.Error(t, err)
	assert.Equal(t, 3, retries)
	assert.Equal(t, 4, calls, "one initial attempt plus three retries")
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, delays)
}

func TestDo_RecoversMidway(t *testing.T) {
	clock := clockwork.NewFakeClock()

	calls := 0
	done := make(chan struct{})

	var retries int
	var err error
	go func() {
		defer close(done)
		retries, err = retry.Do(context.Background(), retry.Policy{
			MaxRetries: 3,
			BaseDelay:  5 * time.Second,
			Clock:      clock,
		}, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("upstream down")
			}
			return nil
		})
	}()

	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)
	clock.BlockUntil(1)
	clock.Advance(10 * time.Second)
	<-done

	require.NoError(t, err)
	assert.Equal(t, 2, retries)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsRetrying(t *testing.T) {
	cause := errors.New("unknown location")
	calls := 0

	retries, err := retry.Do(context.Background(), retry.Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	}, func(context.Context) error {
		calls++
		return backoff.Permanent(cause)
	})

	require.ErrorIs(t, err, cause)
	assert.Equal(t, 0, retries)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = retry.Do(ctx, retry.Policy{
			MaxRetries: 3,
			BaseDelay:  time.Minute,
			Clock:      clock,
		}, func(context.Context) error {
			return errors.New("upstream down")
		})
	}()

	clock.BlockUntil(1)
	cancel()
	<-done

	require.ErrorIs(t, err, context.Canceled)
}
