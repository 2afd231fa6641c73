// Package indexer drives descriptor computation for streams of items: it
// batches items, delegates vector computation to a descriptor.Generator,
// stores the results in a descriptor.Index and yields one pair per item in
// input order.
package indexer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/tracing"
)

// BatchSize is the number of items submitted per generator call.
type BatchSize int

// Unbounded submits the whole input as a single batch.
const Unbounded BatchSize = 0

// Options configures one ComputeMany run.
type Options struct {
	BatchSize BatchSize
	Overwrite bool
	// Concurrency is forwarded to the generator. Zero selects its default.
	Concurrency int
	Factory     descriptor.Factory
}

// Pair is one pipeline output: the item identifier and its vector.
type Pair struct {
	ID     string
	Vector descriptor.Vector
}

type Pipeline struct {
	gen     descriptor.Generator
	index   descriptor.Index
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type PipelineOption func(*Pipeline)

func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

func NewPipeline(gen descriptor.Generator, index descriptor.Index, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		gen:    gen,
		index:  index,
		logger: slog.Default().With("component", "pipeline", "generator", gen.Name()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ComputeMany lazily computes and indexes vectors for items. Pairs are
// yielded in input order whatever the completion order inside the
// generator. A failing batch yields a single error and ends the sequence;
// pairs yielded before it remain valid. Breaking out of the loop stops
// further batches from being submitted.
func (p *Pipeline) ComputeMany(ctx context.Context, items iter.Seq[descriptor.Item], opts Options) iter.Seq2[Pair, error] {
	return func(yield func(Pair, error) bool) {
		if opts.BatchSize < 0 {
			yield(Pair{}, fmt.Errorf("%w: batch size %d is negative", apperrors.ErrInvalidInput, opts.BatchSize))
			return
		}

		ctx, span := tracing.StartChildSpan(ctx, "compute_many")
		var runErr error
		var batches, total int
		defer func() {
			span.SetAttr("batches", batches)
			span.SetAttr("items", total)
			span.End(runErr)
			span.Log(ctx, p.logger)
		}()

		var buf []descriptor.Item
		if opts.BatchSize != Unbounded {
			buf = make([]descriptor.Item, 0, int(opts.BatchSize))
		}

		// flush reports whether the consumer wants more pairs.
		flush := func() bool {
			batches++
			pairs, err := p.processBatch(ctx, batches, buf, opts)
			if err != nil {
				runErr = err
				yield(Pair{}, err)
				return false
			}
			buf = buf[:0]
			for _, pair := range pairs {
				total++
				p.countYielded()
				if !yield(pair, nil) {
					return false
				}
			}
			return true
		}

		for it := range items {
			buf = append(buf, it)
			if opts.BatchSize != Unbounded && len(buf) == int(opts.BatchSize) {
				if !flush() {
					return
				}
			}
		}
		if len(buf) > 0 {
			flush()
		}
	}
}

func (p *Pipeline) processBatch(ctx context.Context, n int, batch []descriptor.Item, opts Options) ([]Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch %d: %w", n, err)
	}
	start := time.Now()
	ctx, span := tracing.StartDetachedSpan(ctx, "batch")
	span.SetAttr("batch", n)
	span.SetAttr("items", len(batch))
	defer span.Log(ctx, p.logger)

	vectors, err := p.gen.ComputeBatch(ctx, descriptor.Request{
		Items:       batch,
		Factory:     opts.Factory,
		Overwrite:   opts.Overwrite,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		err = fmt.Errorf("%w: batch %d (%d items): %w", apperrors.ErrGeneration, n, len(batch), err)
		p.observeBatch("generate_error", len(batch), start)
		span.End(err)
		return nil, err
	}

	keys := make([]string, len(batch))
	unique := make([]descriptor.Vector, 0, len(vectors))
	seen := make(map[string]struct{}, len(vectors))
	for i, it := range batch {
		key := it.Key()
		v, ok := vectors[key]
		if !ok {
			err := fmt.Errorf("%w: batch %d: generator returned no vector for item %s", apperrors.ErrGeneration, n, it.ID)
			p.observeBatch("generate_error", len(batch), start)
			span.End(err)
			return nil, err
		}
		keys[i] = key
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			unique = append(unique, v)
		}
	}

	if err := p.index.AddMany(ctx, unique); err != nil {
		err = fmt.Errorf("batch %d: inserting %d vectors: %w", n, len(unique), err)
		p.observeBatch("insert_error", len(batch), start)
		span.End(err)
		return nil, err
	}

	pairs := make([]Pair, len(batch))
	for i, it := range batch {
		pairs[i] = Pair{ID: it.ID, Vector: vectors[keys[i]]}
	}

	p.observeBatch("ok", len(batch), start)
	if p.metrics != nil {
		p.metrics.VectorsInsertedTotal.Add(float64(len(unique)))
	}
	span.SetAttr("unique", len(unique))
	span.End(nil)
	p.logger.Debug("batch indexed",
		"batch", n,
		"items", len(batch),
		"unique", len(unique),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pairs, nil
}

func (p *Pipeline) observeBatch(outcome string, size int, start time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.PipelineBatchesTotal.WithLabelValues(outcome).Inc()
	p.metrics.PipelineBatchSize.Observe(float64(size))
	p.metrics.PipelineBatchDuration.Observe(time.Since(start).Seconds())
}

func (p *Pipeline) countYielded() {
	if p.metrics != nil {
		p.metrics.ItemsYieldedTotal.Inc()
	}
}
