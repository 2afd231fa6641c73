package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

var errBackend = errors.New("backend down")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("test", BreakerConfig{
		FailureThreshold: 2,
		Cooldown:         time.Minute,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})
	clock := time.Now()
	cb.now = func() time.Time { return clock }

	fail := func(context.Context) error { return errBackend }
	ok := func(context.Context) error { return nil }
	ctx := context.Background()

	assert.ErrorIs(t, cb.Do(ctx, fail), errBackend)
	assert.ErrorIs(t, cb.Do(ctx, fail), errBackend)
	require.Equal(t, StateOpen, cb.State())

	err := cb.Do(ctx, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Do(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("cancel", BreakerConfig{FailureThreshold: 1})
	_ = cb.Do(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, StateClosed, cb.State())
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "flaky", Backoff{Attempts: 3, Initial: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errBackend
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), "fatal", Backoff{
		Attempts:  5,
		Initial:   time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, errBackend) },
	}, func(context.Context) error {
		calls++
		return errBackend
	})
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, calls)
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.NoError(t, WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }))
}
