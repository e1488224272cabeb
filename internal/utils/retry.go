package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// jitter picks the actual delay from [0, d). Replaced in tests.
var jitter = func(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)))
}

// ErrRetriesExhausted wraps the last error once all attempts have failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Backoff configures Retry. Zero values fall back to defaults.
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retryable reports whether err deserves another attempt. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 10 * time.Second
)

// Retry runs op until it succeeds, returns a non-retryable error, the context
// is cancelled or attempts are exhausted. Delays grow exponentially with full jitter.
func Retry(ctx context.Context, b Backoff, op func(ctx context.Context) error) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	base := b.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if b.Retryable != nil && !b.Retryable(lastErr) {
			return lastErr
		}

		if attempt == attempts-1 {
			break
		}

		backoff := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
		backoff = min(backoff, maxDelay)
		delay := jitter(backoff)

		if b.OnRetry != nil {
			b.OnRetry(attempt+1, delay, lastErr)
		}

		if err := WaitFor(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}
