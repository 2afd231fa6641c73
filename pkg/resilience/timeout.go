package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// WithTimeout runs fn under a context cancelled after timeout. When the
// deadline fires first the returned error wraps errors.ErrTimeout. fn is
// expected to honour ctx; WithTimeout always waits for it to return so no
// goroutine outlives the call.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, err)
	}
	return err
}
