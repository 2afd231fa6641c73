package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff configures Retry. Zero fields take defaults.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	Jitter   float64
	// Retryable limits which errors are retried. Nil retries everything.
	Retryable func(error) bool
}

func (b *Backoff) setDefaults() {
	if b.Attempts <= 0 {
		b.Attempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 100 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 10 * time.Second
	}
	if b.Factor <= 0 {
		b.Factor = 2.0
	}
	if b.Jitter <= 0 {
		b.Jitter = 0.1
	}
}

func (b Backoff) delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Factor, float64(attempt-1))
	d += d * b.Jitter * (2*rand.Float64() - 1)
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done.
func Retry(ctx context.Context, name string, b Backoff, fn func(context.Context) error) error {
	b.setDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if b.Retryable != nil && !b.Retryable(err) {
			return err
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s: all %d attempts failed: %w", name, b.Attempts, err)
		}

		wait := b.delay(attempt)
		logger.Warn("attempt failed, retrying", "attempt", attempt, "error", err, "next_delay", wait)
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%s: retry aborted: %w", name, ctx.Err())
		}
	}
}
