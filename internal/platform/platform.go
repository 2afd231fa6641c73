// Package platform builds the shared components every binary wires together
// from a loaded config.
package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/hashstore"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/vectorindex"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/resilience"
)

// OpenVectorIndex opens the Badger-backed vector index.
func OpenVectorIndex(cfg *config.Config) (*vectorindex.Badger, error) {
	return vectorindex.OpenBadger(vectorindex.BadgerOptions{
		Dir:      cfg.Storage.VectorDir,
		InMemory: cfg.Storage.InMemory,
	})
}

// NewGenerator builds the configured generator behind a timeout and a
// circuit breaker. The returned closer releases any remote connection.
func NewGenerator(cfg *config.Config, index descriptor.Index, m *metrics.Metrics) (*descriptor.Guarded, io.Closer, error) {
	var inner descriptor.Generator
	var closer io.Closer = nopCloser{}

	switch cfg.Generator.Kind {
	case "openai":
		backend, err := descriptor.NewOpenAIBackend(
			cfg.Generator.APIKey,
			cfg.Generator.BaseURL,
			cfg.Generator.Model,
			cfg.Generator.RequestsPerSecond,
		)
		if err != nil {
			return nil, nil, err
		}
		inner = descriptor.NewBatchGenerator(backend, index,
			descriptor.WithBackendBatchSize(cfg.Pipeline.GeneratorBatchSize))
	case "remote":
		remote, err := descriptor.DialRemoteGenerator(cfg.Generator.RemoteAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("dialing descriptor server: %w", err)
		}
		inner, closer = remote, remote
	default:
		return nil, nil, fmt.Errorf("unknown generator kind %q", cfg.Generator.Kind)
	}

	breaker := resilience.BreakerConfig{
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("generator circuit changed", "generator", name, "from", from.String(), "to", to.String())
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	}
	return descriptor.NewGuarded(inner, cfg.Pipeline.GeneratorTimeout, breaker), closer, nil
}

// NewFunctor builds the random projection described by the hashing config.
func NewFunctor(cfg *config.Config) (*lsh.RandomProjection, error) {
	return lsh.NewRandomProjection(cfg.Hashing.Dimension, cfg.Hashing.Bits, cfg.Hashing.Seed)
}

// HashOptions maps the hashing config onto lsh.Options. In isolated mode
// each worker rebuilds its own functor from the seed and reads through the
// shared lookup, since a Badger directory can only be opened once.
func HashOptions(cfg *config.Config, lookup lsh.VectorLookup, m *metrics.Metrics) lsh.Options {
	opts := lsh.Options{
		ReportInterval:  cfg.Hashing.ReportInterval,
		UseMultiprocess: cfg.Hashing.UseMultiprocess,
		Workers:         cfg.Hashing.Workers,
		Metrics:         m,
	}
	if opts.UseMultiprocess {
		opts.WorkerInit = func(context.Context) (lsh.VectorLookup, lsh.Functor, error) {
			f, err := NewFunctor(cfg)
			if err != nil {
				return nil, nil, err
			}
			return lookup, f, nil
		}
	}
	return opts
}

// NewFileStore returns the snapshot store at the configured path.
func NewFileStore(cfg *config.Config) *hashstore.File {
	return hashstore.NewFile(cfg.Storage.HashIndexPath)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
