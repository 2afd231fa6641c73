package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/vectorindex"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/proto"
)

type mergingStore struct {
	idx   lsh.InvertedIndex
	saves int
	err   error
}

func (s *mergingStore) Load(context.Context) (lsh.InvertedIndex, error) { return s.idx, nil }

func (s *mergingStore) Save(_ context.Context, idx lsh.InvertedIndex) error {
	if s.err != nil {
		return s.err
	}
	s.saves++
	s.idx.Merge(idx)
	return nil
}

func event(t *testing.T, itemID, key string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(proto.DescriptorComputed{ItemID: itemID, VectorKey: key, Dimension: 3})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func setup(t *testing.T) (*vectorindex.Memory, lsh.Functor) {
	t.Helper()
	idx := vectorindex.NewMemory()
	require.NoError(t, idx.AddMany(context.Background(), []descriptor.Vector{
		{Key: "k1", Type: "text", Values: []float32{1, 0, 0}},
		{Key: "k2", Type: "text", Values: []float32{0, 1, 0}},
	}))
	f, err := lsh.NewRandomProjection(3, 8, 1)
	require.NoError(t, err)
	return idx, f
}

func TestHandleBatchExtendsStore(t *testing.T) {
	idx, f := setup(t)
	store := &mergingStore{idx: lsh.InvertedIndex{}}
	handle := HandleBatch(idx, f, store, lsh.DefaultOptions())

	err := handle(context.Background(), []kafka.Message{
		event(t, "a", "k1"),
		event(t, "b", "k1"),
		{Value: []byte("not json")},
		event(t, "c", "missing"),
		event(t, "d", "k2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 2, store.idx.Memberships())

	want, err := lsh.ComputeHashCodes(context.Background(), func(yield func(string) bool) {
		_ = yield("k1") && yield("k2")
	}, idx, f, nil, lsh.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, want.Equal(store.idx))

	require.NoError(t, handle(context.Background(), []kafka.Message{event(t, "a", "k1")}))
	assert.Equal(t, 2, store.idx.Memberships())
}

func TestHandleBatchSkipsEmptyAndFailsOnSave(t *testing.T) {
	idx, f := setup(t)
	store := &mergingStore{idx: lsh.InvertedIndex{}, err: errors.New("redis down")}
	handle := HandleBatch(idx, f, store, lsh.DefaultOptions())

	require.NoError(t, handle(context.Background(), []kafka.Message{{Value: []byte("{}")}}))
	assert.Error(t, handle(context.Background(), []kafka.Message{event(t, "a", "k1")}))
}
