package descriptor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// Backend turns raw item content into vectors. Implementations receive at
// most the generator's configured batch size per call and must return one
// vector per item, in order.
type Backend interface {
	Name() string
	Accepts(contentType string) bool
	Compute(ctx context.Context, items []Item) ([][]float32, error)
}

// BatchGenerator adapts a Backend to the Generator contract. It deduplicates
// items by content key, reuses vectors already present in the index unless
// the request asks to overwrite them, and splits the remaining work into
// backend-sized chunks.
type BatchGenerator struct {
	backend   Backend
	index     Index
	batchSize int
	logger    *slog.Logger
}

type GeneratorOption func(*BatchGenerator)

// WithBackendBatchSize caps the number of items per Backend.Compute call.
// Zero or less sends everything in one call.
func WithBackendBatchSize(n int) GeneratorOption {
	return func(g *BatchGenerator) { g.batchSize = n }
}

func NewBatchGenerator(backend Backend, index Index, opts ...GeneratorOption) *BatchGenerator {
	g := &BatchGenerator{
		backend: backend,
		index:   index,
		logger:  slog.Default().With("component", "descriptor-generator", "backend", backend.Name()),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *BatchGenerator) Name() string { return g.backend.Name() }

func (g *BatchGenerator) ComputeBatch(ctx context.Context, req Request) (map[string]Vector, error) {
	unique := make([]Item, 0, len(req.Items))
	keys := make([]string, 0, len(req.Items))
	seen := make(map[string]struct{}, len(req.Items))
	for _, it := range req.Items {
		if !g.backend.Accepts(it.ContentType) {
			return nil, fmt.Errorf("%w: item %s has unsupported content type %q for %s",
				apperrors.ErrInvalidInput, it.ID, it.ContentType, g.backend.Name())
		}
		key := it.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, it)
		keys = append(keys, key)
	}

	workers := req.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make(map[string]Vector, len(unique))
	todo := unique
	if !req.Overwrite && g.index != nil {
		existing, err := g.lookupExisting(ctx, keys, workers)
		if err != nil {
			return nil, err
		}
		todo = todo[:0:0]
		for i, it := range unique {
			if v, ok := existing[i]; ok {
				out[keys[i]] = v
				continue
			}
			todo = append(todo, it)
		}
	}

	computed, err := g.computeChunks(ctx, todo, workers, req.factory())
	if err != nil {
		return nil, err
	}
	for _, v := range computed {
		out[v.Key] = v
	}

	g.logger.Debug("batch computed",
		"requested", len(req.Items),
		"unique", len(unique),
		"reused", len(unique)-len(todo),
		"computed", len(todo),
	)
	return out, nil
}

// lookupExisting returns the already indexed vectors, keyed by position in keys.
func (g *BatchGenerator) lookupExisting(ctx context.Context, keys []string, workers int) (map[int]Vector, error) {
	found := make([]*Vector, len(keys))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, key := range keys {
		eg.Go(func() error {
			v, err := g.index.Get(egCtx, key)
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("checking existing vector %s: %w", key, err)
			}
			found[i] = &v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	existing := make(map[int]Vector)
	for i, v := range found {
		if v != nil {
			existing[i] = *v
		}
	}
	return existing, nil
}

func (g *BatchGenerator) computeChunks(ctx context.Context, items []Item, workers int, factory Factory) ([]Vector, error) {
	if len(items) == 0 {
		return nil, nil
	}
	size := g.batchSize
	if size <= 0 || size > len(items) {
		size = len(items)
	}

	out := make([]Vector, len(items))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk := items[start:end]
		eg.Go(func() error {
			values, err := g.backend.Compute(egCtx, chunk)
			if err != nil {
				return fmt.Errorf("%w: %s on items [%d:%d]: %w", apperrors.ErrGeneration, g.backend.Name(), start, end, err)
			}
			if len(values) != len(chunk) {
				return fmt.Errorf("%w: %s returned %d vectors for %d items",
					apperrors.ErrGeneration, g.backend.Name(), len(values), len(chunk))
			}
			for i, it := range chunk {
				out[start+i] = factory(g.backend.Name(), it.Key(), values[i])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IsText reports whether contentType is a text type.
func IsText(contentType string) bool {
	return strings.HasPrefix(contentType, "text/")
}
