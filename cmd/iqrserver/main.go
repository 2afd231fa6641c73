// Command iqrserver serves interactive query refinement sessions over HTTP.
//
// Each session collects positive and negative adjudications and refines its
// results from the hash index buckets of its positive examples. The server
// also exposes the classification store, health probes and Prometheus
// metrics.
//
// Usage:
//
//	go run ./cmd/iqrserver [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/classification"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/hashstore"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/iqr"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/platform"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/postgres"
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
	slog.Info("starting iqr server", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	searcher := lsh.NewSearcher(index, functor, hashstore.NewRedis(rdb, cfg.Redis.KeyPrefix),
		lsh.WithProbeRadius(cfg.Hashing.ProbeRadius))

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx, classification.Schema); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	controller := iqr.NewController[*iqr.Session](iqr.WithControllerMetrics(m))
	checker := health.NewChecker(0)
	checker.Register("redis", health.Ping(rdb.Ping))
	checker.Register("postgres", health.Ping(db.Ping))

	mux := http.NewServeMux()
	iqr.NewHandler(controller, func() iqr.Refiner { return searcher }).Register(mux)
	classification.NewHandler(classification.NewPostgresStore(db)).Register(mux)
	mux.HandleFunc("GET /healthz", checker.LiveHandler())
	mux.HandleFunc("GET /readyz", checker.ReadyHandler())

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Server.AllowOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.AllowOrigins
	}
	chain := []func(http.Handler) http.Handler{middleware.RequestID, middleware.CORS(cors), middleware.Metrics(m)}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
		limiter.StartSweeper(ctx, 5*time.Minute)
		chain = append(chain, limiter.Middleware)
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("iqr server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("iqr server stopped", "open_sessions", controller.Len(context.Background()))
}
