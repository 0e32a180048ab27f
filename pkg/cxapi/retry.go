package cxapi

import (
	"context"
	"time"
)

// Sleeper pauses between retry attempts. Tests inject a no-op.
type Sleeper func(d time.Duration)

// RetryPolicy bounds a retry loop with exponential backoff. Retries in this
// package are intentionally narrow: only the session-limit path uses one.
// Everything else is reported immediately rather than masked.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       Sleeper
}

// DefaultRetryPolicy matches the bounded session-limit recovery sequence:
// three attempts, 1s/2s/4s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: time.Sleep}
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is exhausted. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return err
			}
			sleep(p.BaseDelay << (attempt - 1))
		}
		err = op(attempt)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}
