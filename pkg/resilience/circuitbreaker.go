// Package resilience provides fault-tolerance primitives used at the edges
// of the pipeline: a circuit breaker around descriptor backends, retry with
// exponential backoff for store writes, and a timeout wrapper.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", apperrors.ErrUnavailable)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls when the breaker trips and how it recovers.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	Probes           int
	// OnStateChange, when set, is called with the lock held.
	OnStateChange func(name string, from, to State)
	// IsFailure decides which errors count against the breaker. Defaults to
	// every non-nil error except context cancellation.
	IsFailure func(error) bool
}

func (c *BreakerConfig) setDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures, rejects
// calls for Cooldown, then lets Probes calls through to decide whether to
// close again.
type CircuitBreaker struct {
	name     string
	cfg      BreakerConfig
	logger   *slog.Logger
	now      func() time.Time
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inFlight int
}

func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	cfg.setDefaults()
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Do runs fn if the breaker admits the call and records its outcome.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.Cooldown - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait)
		}
		cb.transition(StateHalfOpen)
		cb.inFlight = 1
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.Probes {
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.inFlight++
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.cfg.IsFailure(err) {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.inFlight = 0
			cb.transition(StateClosed)
		}
		return
	}
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.inFlight = 0
		cb.openedAt = cb.now()
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.logger.Warn("circuit state changed", "from", from.String(), "to", to.String(), "consecutive_failures", cb.failures)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.inFlight = 0
	cb.transition(StateClosed)
}
