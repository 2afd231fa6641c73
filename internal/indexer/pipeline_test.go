package indexer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/vectorindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/tracing"
)

// fakeGenerator returns a one-dimensional vector holding the content length.
// It fails on the batch numbered failOn (1-based) when set.
type fakeGenerator struct {
	mu      sync.Mutex
	batches [][]string
	failOn  int
	drop    string
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) ComputeBatch(_ context.Context, req descriptor.Request) (map[string]descriptor.Vector, error) {
	g.mu.Lock()
	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ID
	}
	g.batches = append(g.batches, ids)
	n := len(g.batches)
	g.mu.Unlock()

	if n == g.failOn {
		return nil, errors.New("backend exploded")
	}
	out := make(map[string]descriptor.Vector)
	for _, it := range req.Items {
		if it.ID == g.drop {
			continue
		}
		out[it.Key()] = descriptor.NewVector("fake", it.Key(), []float32{float32(len(it.Content))})
	}
	return out, nil
}

func (g *fakeGenerator) batchSizes() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	sizes := make([]int, len(g.batches))
	for i, b := range g.batches {
		sizes[i] = len(b)
	}
	return sizes
}

type countingIndex struct {
	*vectorindex.Memory
	mu    sync.Mutex
	calls []int
	fail  error
}

func (c *countingIndex) AddMany(ctx context.Context, vs []descriptor.Vector) error {
	c.mu.Lock()
	c.calls = append(c.calls, len(vs))
	c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	return c.Memory.AddMany(ctx, vs)
}

func makeItems(n int) []descriptor.Item {
	items := make([]descriptor.Item, n)
	for i := range items {
		items[i] = descriptor.Item{
			ID:          fmt.Sprintf("/data/item-%03d.txt", i),
			ContentType: "text/plain",
			Content:     []byte(fmt.Sprintf("content %d %s", i, string(make([]byte, i%7)))),
		}
	}
	return items
}

func ids(items []descriptor.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func collect(t *testing.T, p *Pipeline, items []descriptor.Item, opts Options) []Pair {
	t.Helper()
	var pairs []Pair
	for pair, err := range p.ComputeMany(context.Background(), slices.Values(items), opts) {
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}
	return pairs
}

func TestComputeManyPreservesOrder(t *testing.T) {
	const n = 20
	items := makeItems(n)
	for _, size := range []BatchSize{1, n / 2, n, Unbounded, 3, n + 5} {
		t.Run(fmt.Sprintf("batch=%d", size), func(t *testing.T) {
			gen := &fakeGenerator{}
			p := NewPipeline(gen, vectorindex.NewMemory())
			pairs := collect(t, p, items, Options{BatchSize: size})

			got := make([]string, len(pairs))
			for i, pair := range pairs {
				got[i] = pair.ID
				assert.Equal(t, items[i].Key(), pair.Vector.Key)
				assert.Equal(t, float32(len(items[i].Content)), pair.Vector.Values[0])
			}
			assert.Equal(t, ids(items), got)
		})
	}
}

func TestComputeManyBatchesFiveByTwo(t *testing.T) {
	items := makeItems(5)
	gen := &fakeGenerator{}
	idx := &countingIndex{Memory: vectorindex.NewMemory()}
	p := NewPipeline(gen, idx)

	pairs := collect(t, p, items, Options{BatchSize: 2})

	assert.Len(t, pairs, 5)
	assert.Equal(t, []int{2, 2, 1}, gen.batchSizes())
	assert.Equal(t, []int{2, 2, 1}, idx.calls)
	n, err := idx.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestComputeManyUnboundedSingleBatch(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPipeline(gen, vectorindex.NewMemory())
	collect(t, p, makeItems(9), Options{})
	assert.Equal(t, []int{9}, gen.batchSizes())
}

func TestComputeManyEmptyInput(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPipeline(gen, vectorindex.NewMemory())
	assert.Empty(t, collect(t, p, nil, Options{BatchSize: 4}))
	assert.Empty(t, collect(t, p, nil, Options{}))
	assert.Empty(t, gen.batchSizes())
}

func TestComputeManyDuplicateContent(t *testing.T) {
	items := []descriptor.Item{
		{ID: "a", ContentType: "text/plain", Content: []byte("same")},
		{ID: "b", ContentType: "text/plain", Content: []byte("different")},
		{ID: "c", ContentType: "text/plain", Content: []byte("same")},
	}
	idx := &countingIndex{Memory: vectorindex.NewMemory()}
	p := NewPipeline(&fakeGenerator{}, idx)

	pairs := collect(t, p, items, Options{})
	require.Len(t, pairs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{pairs[0].ID, pairs[1].ID, pairs[2].ID})
	assert.Equal(t, pairs[0].Vector, pairs[2].Vector)
	assert.Equal(t, []int{2}, idx.calls)
}

func TestComputeManyErrorKeepsEarlierPairs(t *testing.T) {
	gen := &fakeGenerator{failOn: 2}
	p := NewPipeline(gen, vectorindex.NewMemory())

	var got []string
	var errs []error
	for pair, err := range p.ComputeMany(context.Background(), slices.Values(makeItems(6)), Options{BatchSize: 2}) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, pair.ID)
	}

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], apperrors.ErrGeneration)
	assert.Equal(t, ids(makeItems(6))[:2], got)
	assert.Equal(t, []int{2, 2}, gen.batchSizes())
}

func TestComputeManyMissingVector(t *testing.T) {
	items := makeItems(3)
	p := NewPipeline(&fakeGenerator{drop: items[1].ID}, vectorindex.NewMemory())
	var last error
	for _, err := range p.ComputeMany(context.Background(), slices.Values(items), Options{}) {
		last = err
	}
	assert.ErrorIs(t, last, apperrors.ErrGeneration)
}

func TestComputeManyInsertError(t *testing.T) {
	boom := errors.New("disk full")
	p := NewPipeline(&fakeGenerator{}, &countingIndex{Memory: vectorindex.NewMemory(), fail: boom})
	var last error
	for _, err := range p.ComputeMany(context.Background(), slices.Values(makeItems(2)), Options{}) {
		last = err
	}
	assert.ErrorIs(t, last, boom)
}

func TestComputeManyStopsWhenConsumerBreaks(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPipeline(gen, vectorindex.NewMemory())
	for _, err := range p.ComputeMany(context.Background(), slices.Values(makeItems(10)), Options{BatchSize: 3}) {
		require.NoError(t, err)
		break
	}
	assert.Equal(t, []int{3}, gen.batchSizes())
}

func TestComputeManyRejectsNegativeBatchSize(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewPipeline(gen, vectorindex.NewMemory())
	for _, err := range p.ComputeMany(context.Background(), slices.Values(makeItems(1)), Options{BatchSize: -1}) {
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
	assert.Empty(t, gen.batchSizes())
}

func TestComputeManyRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := NewPipeline(&fakeGenerator{}, vectorindex.NewMemory(), WithMetrics(m))
	collect(t, p, makeItems(5), Options{BatchSize: 2})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.PipelineBatchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ItemsYieldedTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.VectorsInsertedTotal))
}

func TestComputeManyDoesNotRetainBatchSpans(t *testing.T) {
	ctx, root := tracing.StartSpan(context.Background(), "walk", "")
	p := NewPipeline(&fakeGenerator{}, vectorindex.NewMemory())

	var n int
	for _, err := range p.ComputeMany(ctx, slices.Values(makeItems(500)), Options{BatchSize: 1}) {
		require.NoError(t, err)
		n++
		if n == 400 {
			runs := root.Children()
			require.Len(t, runs, 1)
			assert.Empty(t, runs[0].Children())
		}
	}
	assert.Equal(t, 500, n)
	assert.Len(t, root.Children(), 1)
	assert.Empty(t, root.Children()[0].Children())
}
