package descriptor

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/resilience"
)

// Guarded bounds each ComputeBatch call with a timeout and stops calling a
// failing generator until its circuit breaker recovers.
type Guarded struct {
	inner   Generator
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func NewGuarded(inner Generator, timeout time.Duration, cfg resilience.BreakerConfig) *Guarded {
	return &Guarded{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker(inner.Name(), cfg),
		timeout: timeout,
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) ComputeBatch(ctx context.Context, req Request) (map[string]Vector, error) {
	var out map[string]Vector
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, g.timeout, "compute batch", func(ctx context.Context) error {
			var err error
			out, err = g.inner.ComputeBatch(ctx, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// State exposes the breaker state for health checks.
func (g *Guarded) State() resilience.State { return g.breaker.State() }
