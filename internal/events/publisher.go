// Package events buffers DescriptorComputed notifications and publishes them
// to Kafka in batches, so the hash indexer can extend its buckets
// incrementally.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/proto"
)

// Sink is the Kafka side of the publisher. *kafka.Producer satisfies it.
type Sink interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Topic() string
}

type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
}

// Publisher accumulates events and flushes them when the buffer reaches
// BatchSize or FlushInterval elapses. Failed batches are re-queued up to
// three batches' worth; beyond that the oldest are dropped.
type Publisher struct {
	sink          Sink
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time

	mu     sync.Mutex
	buffer []kafka.Event

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPublisher(sink Sink, opts Options) *Publisher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	return &Publisher{
		sink:          sink,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		metrics:       opts.Metrics,
		logger:        slog.Default().With("component", "descriptor-events"),
		now:           time.Now,
		buffer:        make([]kafka.Event, 0, opts.BatchSize),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start launches the flush loop. Close stops it after a final flush.
func (p *Publisher) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.flush(ctx)
			case <-p.kick:
				p.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				p.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	p.logger.Info("event publisher started",
		"topic", p.sink.Topic(),
		"batch_size", p.batchSize,
		"flush_interval", p.flushInterval,
	)
}

// DescriptorComputed records that itemID now has vector v.
func (p *Publisher) DescriptorComputed(itemID string, v descriptor.Vector, generator string) {
	p.Track(proto.DescriptorComputed{
		ItemID:     itemID,
		VectorKey:  v.Key,
		Generator:  generator,
		Dimension:  v.Dim(),
		ComputedAt: p.now().UnixMilli(),
	})
}

// Track buffers ev keyed by its vector key.
func (p *Publisher) Track(ev proto.DescriptorComputed) {
	p.mu.Lock()
	p.buffer = append(p.buffer, kafka.Event{Key: ev.VectorKey, Value: ev})
	full := len(p.buffer) >= p.batchSize
	p.mu.Unlock()

	if full {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Close stops the loop and waits for the final flush.
func (p *Publisher) Close() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	batch := p.buffer
	p.buffer = make([]kafka.Event, 0, p.batchSize)
	p.mu.Unlock()

	if err := p.sink.PublishBatch(ctx, batch); err != nil {
		p.observe("error", len(batch))
		p.logger.Error("event flush failed", "batch_size", len(batch), "error", err)

		p.mu.Lock()
		p.buffer = append(batch, p.buffer...)
		if limit := p.batchSize * 3; len(p.buffer) > limit {
			dropped := len(p.buffer) - limit
			p.buffer = p.buffer[dropped:]
			p.observe("dropped", dropped)
			p.logger.Warn("event buffer overflow, oldest events dropped", "dropped", dropped)
		}
		p.mu.Unlock()
		return
	}
	p.observe("ok", len(batch))
	p.logger.Debug("events flushed", "events", len(batch))
}

func (p *Publisher) observe(status string, n int) {
	if p.metrics == nil {
		return
	}
	p.metrics.EventsPublishedTotal.WithLabelValues(p.sink.Topic(), status).Add(float64(n))
}
