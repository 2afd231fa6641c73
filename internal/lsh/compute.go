package lsh

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/progress"
)

// DefaultReportInterval is the progress cadence used by DefaultOptions.
const DefaultReportInterval = time.Second

// VectorLookup fetches a stored vector by key. Missing keys return an error
// wrapping errors.ErrNotFound.
type VectorLookup interface {
	Get(ctx context.Context, key string) (descriptor.Vector, error)
}

// WorkerInit builds the lookup and functor owned by one isolated worker. If
// the lookup implements io.Closer it is closed when the worker exits.
type WorkerInit func(ctx context.Context) (VectorLookup, Functor, error)

// Options configures ComputeHashCodes.
type Options struct {
	// ReportInterval is the debug progress cadence. Non-positive disables
	// periodic reports.
	ReportInterval time.Duration
	// UseMultiprocess gives every worker its own lookup and functor built by
	// WorkerInit instead of sharing the ones passed to ComputeHashCodes.
	UseMultiprocess bool
	WorkerInit      WorkerInit
	// Workers defaults to GOMAXPROCS.
	Workers int
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func DefaultOptions() Options {
	return Options{ReportInterval: DefaultReportInterval}
}

type hashResult struct {
	id   string
	code HashCode
}

// ComputeHashCodes hashes the vector of every key in ids and records the key
// under its hash code. Keys are processed by a worker pool and collected by
// a single consumer, so completion order never affects the result.
//
// The run is built in a private index and merged into hash2ids only when
// every key succeeded; on error hash2ids is left untouched. A nil hash2ids
// is replaced by a new index. The caller must not write hash2ids
// concurrently.
func ComputeHashCodes(
	ctx context.Context,
	ids iter.Seq[string],
	lookup VectorLookup,
	functor Functor,
	hash2ids InvertedIndex,
	opts Options,
) (InvertedIndex, error) {
	mode := "shared"
	if opts.UseMultiprocess {
		mode = "isolated"
		if opts.WorkerInit == nil {
			return hash2ids, fmt.Errorf("%w: isolated workers need a WorkerInit", apperrors.ErrInvalidInput)
		}
	} else if lookup == nil || functor == nil {
		return hash2ids, fmt.Errorf("%w: shared workers need a lookup and a functor", apperrors.ErrInvalidInput)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hash-indexer", "mode", mode, "workers", workers)
	if opts.UseMultiprocess {
		logger.Warn("isolated workers each hold their own lookup and functor; resident memory grows with the worker count")
	}

	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	jobs := make(chan string, workers)
	results := make(chan hashResult, workers)

	eg.Go(func() error {
		defer close(jobs)
		for id := range ids {
			select {
			case jobs <- id:
			case <-egCtx.Done():
				return egCtx.Err()
			}
		}
		return nil
	})

	var initWorker WorkerInit
	if opts.UseMultiprocess {
		initWorker = opts.WorkerInit
	}
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		eg.Go(func() error {
			defer wg.Done()
			return hashWorker(egCtx, jobs, results, lookup, functor, initWorker)
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	run := make(InvertedIndex)
	reporter := progress.New(ctx, logger, "hash codes", opts.ReportInterval)
	for r := range results {
		run.Add(r.code, r.id)
		reporter.Inc()
	}
	reporter.Done()

	if err := eg.Wait(); err != nil {
		logger.Error("hash indexing aborted", "processed", reporter.Count(), "error", err)
		return hash2ids, err
	}

	if hash2ids == nil {
		hash2ids = make(InvertedIndex, len(run))
	}
	hash2ids.Merge(run)

	if m := opts.Metrics; m != nil {
		m.HashCodesComputedTotal.Add(float64(reporter.Count()))
		m.HashRunDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
		m.HashBuckets.Set(float64(len(hash2ids)))
	}
	logger.Info("hash index updated",
		"hashed", reporter.Count(),
		"run_buckets", len(run),
		"total_buckets", len(hash2ids),
	)
	return hash2ids, nil
}

func hashWorker(
	ctx context.Context,
	jobs <-chan string,
	results chan<- hashResult,
	lookup VectorLookup,
	functor Functor,
	initWorker WorkerInit,
) error {
	if initWorker != nil {
		var err error
		lookup, functor, err = initWorker(ctx)
		if err != nil {
			return fmt.Errorf("initialising hash worker: %w", err)
		}
		if c, ok := lookup.(io.Closer); ok {
			defer c.Close()
		}
	}

	for id := range jobs {
		code, err := hashOne(ctx, lookup, functor, id)
		if err != nil {
			return err
		}
		select {
		case results <- hashResult{id: id, code: code}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func hashOne(ctx context.Context, lookup VectorLookup, functor Functor, id string) (HashCode, error) {
	v, err := lookup.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("looking up vector %s: %w", id, err)
	}
	bits, err := functor.Hash(v.Values)
	if err != nil {
		return "", fmt.Errorf("hashing vector %s: %w", id, err)
	}
	code, err := HashCodeOf(bits, functor.BitLength())
	if err != nil {
		return "", fmt.Errorf("hashing vector %s: %w", id, err)
	}
	return code, nil
}
