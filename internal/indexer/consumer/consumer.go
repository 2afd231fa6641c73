// Package consumer turns DescriptorComputed events from Kafka into
// incremental updates of the persisted hash index.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/hashstore"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/proto"
)

// HashConsumer wraps a Kafka consumer that drives hash indexing.
type HashConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *HashConsumer {
	return &HashConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "hash-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (hc *HashConsumer) Start(ctx context.Context) error {
	hc.logger.Info("hash consumer starting")
	return hc.consumer.Start(ctx)
}

// HandleBatch hashes the vectors named by a batch of events and adds them to
// store. store must merge on Save, as hashstore.Redis does. Undecodable
// events and vectors missing from index are skipped so they are not
// redelivered forever; any other failure fails the batch.
func HandleBatch(index descriptor.Index, functor lsh.Functor, store hashstore.Store, opts lsh.Options) kafka.BatchHandler {
	logger := slog.Default().With("component", "hash-consumer")
	return func(ctx context.Context, batch []kafka.Message) error {
		seen := make(map[string]struct{}, len(batch))
		keys := make([]string, 0, len(batch))
		for _, msg := range batch {
			event, err := kafka.DecodeJSON[proto.DescriptorComputed](msg.Value)
			if err != nil || event.VectorKey == "" {
				logger.Error("skipping undecodable event",
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
				continue
			}
			if _, dup := seen[event.VectorKey]; dup {
				continue
			}
			seen[event.VectorKey] = struct{}{}

			ok, err := index.Has(ctx, event.VectorKey)
			if err != nil {
				return fmt.Errorf("checking vector %s: %w", event.VectorKey, err)
			}
			if !ok {
				logger.Warn("vector not in index, skipping", "item_id", event.ItemID, "vector_key", event.VectorKey)
				continue
			}
			keys = append(keys, event.VectorKey)
		}
		if len(keys) == 0 {
			return nil
		}

		run, err := lsh.ComputeHashCodes(ctx, slices.Values(keys), index, functor, nil, opts)
		if err != nil {
			return fmt.Errorf("hashing %d vectors: %w", len(keys), err)
		}
		if err := store.Save(ctx, run); err != nil {
			return fmt.Errorf("saving %d buckets: %w", len(run), err)
		}
		logger.Debug("batch hashed", "events", len(batch), "vectors", len(keys), "buckets", len(run))
		return nil
	}
}
