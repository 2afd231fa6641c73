package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/proto"
)

type memSink struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    int
}

func (s *memSink) PublishBatch(_ context.Context, events []kafka.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("broker unavailable")
	}
	s.batches = append(s.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (s *memSink) Topic() string { return "descriptor.computed" }

func (s *memSink) published() []kafka.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []kafka.Event
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func TestPublisherFlushesFullBatch(t *testing.T) {
	sink := &memSink{}
	m := metrics.New(prometheus.NewRegistry())
	p := NewPublisher(sink, Options{BatchSize: 2, FlushInterval: time.Hour, Metrics: m})
	p.now = func() time.Time { return time.UnixMilli(42) }
	p.Start(context.Background())
	defer p.Close()

	v := descriptor.Vector{Key: "k1", Type: "text", Values: []float32{1, 0, 0}}
	p.DescriptorComputed("item-1", v, "openai")
	p.DescriptorComputed("item-2", v, "openai")

	require.Eventually(t, func() bool { return len(sink.published()) == 2 }, time.Second, 5*time.Millisecond)
	ev := sink.published()[0]
	assert.Equal(t, "k1", ev.Key)
	assert.Equal(t, proto.DescriptorComputed{
		ItemID: "item-1", VectorKey: "k1", Generator: "openai", Dimension: 3, ComputedAt: 42,
	}, ev.Value)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsPublishedTotal.WithLabelValues("descriptor.computed", "ok")))
}

func TestPublisherRequeuesAndFlushesOnClose(t *testing.T) {
	sink := &memSink{fail: 1}
	p := NewPublisher(sink, Options{BatchSize: 10, FlushInterval: 10 * time.Millisecond})
	p.Start(context.Background())

	p.Track(proto.DescriptorComputed{ItemID: "a", VectorKey: "ka"})
	require.Eventually(t, func() bool { return len(sink.published()) == 1 }, time.Second, 5*time.Millisecond)

	p.Track(proto.DescriptorComputed{ItemID: "b", VectorKey: "kb"})
	p.Close()
	assert.Len(t, sink.published(), 2)
	assert.Zero(t, p.Pending())
}

func TestPublisherDropsOldestOnOverflow(t *testing.T) {
	sink := &memSink{fail: 1}
	p := NewPublisher(sink, Options{BatchSize: 1})
	for i := range 5 {
		p.buffer = append(p.buffer, kafka.Event{Key: string(rune('a' + i))})
	}
	p.flush(context.Background())
	require.Equal(t, 3, p.Pending())
	assert.Equal(t, "c", p.buffer[0].Key)
}
