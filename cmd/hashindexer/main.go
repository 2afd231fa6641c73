// Command hashindexer consumes DescriptorComputed events from Kafka and adds
// the corresponding vectors to the Redis-backed hash index.
//
// Usage:
//
//	go run ./cmd/hashindexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/hashstore"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/platform"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting hash indexer",
		"bits", cfg.Hashing.Bits,
		"dimension", cfg.Hashing.Dimension,
		"isolated_workers", cfg.Hashing.UseMultiprocess,
	)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	index, err := platform.OpenVectorIndex(cfg)
	if err != nil {
		slog.Error("failed to open vector index", "error", err)
		os.Exit(1)
	}
	defer index.Close()

	functor, err := platform.NewFunctor(cfg)
	if err != nil {
		slog.Error("failed to build hash functor", "error", err)
		os.Exit(1)
	}

	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()
	store := hashstore.NewRedis(rdb, cfg.Redis.KeyPrefix)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := consumer.HandleBatch(index, functor, store, platform.HashOptions(cfg, index, m))
	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DescriptorComputed,
		kafka.ConsumerOptions{},
		handler,
	)
	hashConsumer := consumer.New(kafkaConsumer)

	slog.Info("hash indexer ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DescriptorComputed,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := hashConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	slog.Info("hash indexer stopped")
}
