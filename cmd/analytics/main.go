// Command analytics runs the standalone match analytics service.
//
// It consumes match-events from Kafka under its own consumer group, so it
// sees every event regardless of how many matcher replicas run, aggregates
// them in memory, persists periodic snapshots to Postgres and serves
// GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
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
	slog.Info("starting analytics service", "port", cfg.Server.Port)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service needs kafka; set kafka.enabled")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := aggregator.NewStore(db)

	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-analytics"
	agg := analytics.NewAggregator(nil)
	consumer := kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.MatchEvents, analytics.HandleEvent(agg))
	defer consumer.Close()
	agg.SetConsumer(consumer)

	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()
	store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
	slog.Info("analytics aggregator started",
		"topic", cfg.Kafka.Topics.MatchEvents,
		"group", kafkaCfg.ConsumerGroup,
	)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, false))

	mux := http.NewServeMux()
	analytics.NewHandler(agg, store).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
