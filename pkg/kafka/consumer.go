// Package kafka wraps segmentio/kafka-go. The producer publishes JSON events;
// the consumer hands decoded batches to a callback and commits offsets only
// after the callback succeeds.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
)

// Message is the part of a Kafka record handlers see.
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// BatchHandler processes a batch of messages. Returning an error leaves the
// batch uncommitted so it is redelivered.
type BatchHandler func(ctx context.Context, batch []Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOptions bounds batch accumulation.
type ConsumerOptions struct {
	MaxBatch      int
	FlushInterval time.Duration
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.MaxBatch <= 0 {
		o.MaxBatch = 256
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	return o
}

// Consumer reads a topic and dispatches batches to a BatchHandler.
type Consumer struct {
	reader  reader
	opts    ConsumerOptions
	handler BatchHandler
	logger  *slog.Logger
}

// NewConsumer creates a group consumer for topic.
func NewConsumer(cfg config.KafkaConfig, topic string, opts ConsumerOptions, handler BatchHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, opts, handler)
}

func newConsumer(r reader, topic string, opts ConsumerOptions, handler BatchHandler) *Consumer {
	return &Consumer{
		reader:  r,
		opts:    opts.withDefaults(),
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. A batch is flushed when it reaches
// MaxBatch messages or when FlushInterval passes without a new message.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "max_batch", c.opts.MaxBatch)
	defer c.reader.Close()

	var pending []kafka.Message
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FlushInterval)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()

		switch {
		case ctx.Err() != nil:
			c.logger.Info("consumer stopping", "reason", ctx.Err(), "unflushed", len(pending))
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			pending = c.flush(ctx, pending)
			continue
		case err != nil:
			c.logger.Error("failed to fetch message", "error", err)
			continue
		}

		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"value_size", len(msg.Value),
		)
		pending = append(pending, msg)
		if len(pending) >= c.opts.MaxBatch {
			pending = c.flush(ctx, pending)
		}
	}
}

// flush hands pending to the handler and commits it. On handler failure the
// batch is kept and retried at the next flush.
func (c *Consumer) flush(ctx context.Context, pending []kafka.Message) []kafka.Message {
	if len(pending) == 0 {
		return pending
	}
	batch := make([]Message, len(pending))
	for i, m := range pending {
		batch[i] = Message{Key: m.Key, Value: m.Value, Partition: m.Partition, Offset: m.Offset}
	}
	if err := c.handler(ctx, batch); err != nil {
		c.logger.Error("failed to process batch", "size", len(batch), "error", err)
		return pending
	}
	if err := c.reader.CommitMessages(ctx, pending...); err != nil {
		c.logger.Error("failed to commit batch", "size", len(pending), "error", err)
	}
	return pending[:0]
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
