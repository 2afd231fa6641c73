package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumerBatchesAndCommits(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 8)}
	for i := range 3 {
		r.msgs <- kafka.Message{Offset: int64(i), Value: []byte(`{}`)}
	}

	var mu sync.Mutex
	var sizes []int
	c := newConsumer(r, "t", ConsumerOptions{MaxBatch: 2, FlushInterval: 20 * time.Millisecond},
		func(_ context.Context, batch []Message) error {
			mu.Lock()
			sizes = append(sizes, len(batch))
			mu.Unlock()
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.Committed()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1}, sizes)
	assert.Equal(t, []int64{0, 1, 2}, r.Committed())
}

func TestConsumerRetriesFailedBatch(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafka.Message, 1)}
	r.msgs <- kafka.Message{Offset: 7}

	var calls int
	c := newConsumer(r, "t", ConsumerOptions{MaxBatch: 10, FlushInterval: 10 * time.Millisecond},
		func(context.Context, []Message) error {
			calls++
			if calls == 1 {
				return errors.New("redis down")
			}
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return len(r.Committed()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{7}, r.Committed())
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "descriptors")

	require.NoError(t, p.Publish(context.Background(), Event{Key: "k", Value: map[string]int{"dim": 3}}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "k", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"dim":3}`, string(w.msgs[0].Value))

	decoded, err := DecodeJSON[map[string]int](w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded["dim"])

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.Len(t, w.msgs, 1)

	w.err = errors.New("broker gone")
	assert.Error(t, p.Publish(context.Background(), Event{Key: "k", Value: 1}))
}
