// Command descriptorserver exposes a descriptor generator over the RPC layer
// so pipelines on other hosts can use it through descriptor.RemoteGenerator.
//
// Usage:
//
//	go run ./cmd/descriptorserver [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/platform"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/vectorindex"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/resilience"
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

	if cfg.Generator.Kind == "remote" {
		slog.Error("descriptorserver needs a local generator; set generator.kind to openai")
		os.Exit(1)
	}

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	// The server only dedupes within a request; vectors are stored by the caller.
	gen, closer, err := platform.NewGenerator(cfg, vectorindex.NewMemory(), m)
	if err != nil {
		slog.Error("failed to build generator", "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	server := grpc.NewServer()
	server.Register(proto.MethodComputeBatch, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var in proto.ComputeBatchRequest
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
		in.Overwrite = true
		return descriptor.ServeComputeBatch(ctx, gen, in)
	})
	server.Register(proto.MethodHealth, func(context.Context, json.RawMessage) (any, error) {
		status := "SERVING"
		if gen.State() != resilience.StateClosed {
			status = "NOT_SERVING"
		}
		return &proto.HealthCheckResponse{Status: status}, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		server.Stop()
	}()

	slog.Info("descriptor server starting", "addr", cfg.Server.RPCAddr, "generator", gen.Name())
	if err := server.Serve(cfg.Server.RPCAddr); err != nil {
		slog.Error("rpc server error", "error", err)
		os.Exit(1)
	}
	slog.Info("descriptor server stopped")
}
