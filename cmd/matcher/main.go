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
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/matcher"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/redis"
)

const visitorIdleTimeout = 10 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting matcher service",
		"port", cfg.Server.Port,
		"weight_table", cfg.Matcher.WeightTable,
		"kafka", cfg.Kafka.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	repo := corpus.NewRepository(db)

	index := corpus.NewIndex(m)
	loader := corpus.NewLoader(index, repo, cfg.Corpus)
	if err := loader.Load(ctx); err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}
	fragments, encodings := index.Size()
	slog.Info("corpus loaded", "fragments", fragments, "encodings", encodings)

	var rankingCache *matcher.Cache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, ranking cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		rankingCache = matcher.NewCache(redisClient, cfg.Redis.CacheTTL, m)
		slog.Info("ranking cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}
	invalidate := func(ctx context.Context) {
		if rankingCache == nil {
			return
		}
		if err := rankingCache.Invalidate(ctx); err != nil {
			slog.Warn("ranking cache invalidation failed", "error", err)
		}
	}

	applier := corpus.NewApplier(index, func(ctx context.Context, _ corpus.UpdateEvent) { invalidate(ctx) })
	loader.StartPeriodicReload(ctx, invalidate)

	agg := analytics.NewAggregator(nil)
	var tracker matcher.Tracker = agg
	var publisher corpus.Publisher

	if cfg.Kafka.Enabled {
		// Every replica keeps a full corpus, so each one needs its own group
		// to see every update.
		updatesCfg := cfg.Kafka
		updatesCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup + "-" + uuid.NewString()
		updates := kafka.NewConsumer(updatesCfg, cfg.Kafka.Topics.FragmentUpdates, applier.HandleMessage())
		defer updates.Close()
		go func() {
			if err := updates.Start(ctx); err != nil {
				slog.Error("fragment updates consumer error", "error", err)
			}
		}()
		slog.Info("consuming fragment updates",
			"topic", cfg.Kafka.Topics.FragmentUpdates,
			"group", updatesCfg.ConsumerGroup,
		)

		updatesProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FragmentUpdates)
		defer updatesProducer.Close()
		publisher = updatesProducer

		eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.MatchEvents)
		defer eventsProducer.Close()
		collector := analytics.NewCollector(eventsProducer,
			cfg.Analytics.BufferSize,
			cfg.Analytics.BatchSize,
			cfg.Analytics.FlushInterval,
		)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.MatchEvents)

		agg.SetConsumer(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.MatchEvents, analytics.HandleEvent(agg)))
		go func() {
			if err := agg.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
	} else {
		slog.Warn("kafka disabled, updates apply locally and analytics stay in process")
	}
	statsStore := aggregator.NewStore(db)
	statsStore.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)

	searcher, err := lemma.NewSearcher(cfg.Lemma, m)
	if err != nil {
		slog.Error("failed to create lemma searcher", "error", err)
		os.Exit(1)
	}
	defer searcher.Release()

	ranker := matcher.New(index, cfg.Matcher, m)
	matchHandler := matcher.NewHandler(ranker, cfg.Matcher,
		matcher.WithCache(rankingCache),
		matcher.WithTracker(tracker),
		matcher.WithMetrics(m),
		matcher.WithTracing(cfg.Tracing.Enabled),
	)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, false))
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		return health.PingCheck(redisClient.Ping, true)(ctx)
	})
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		fragments, encodings := index.Size()
		if fragments == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "corpus is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d fragments, %d encodings", fragments, encodings),
		}
	})

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port)
		metricsServer.Handle("/health/live", checker.LiveHandler())
		metricsServer.Handle("/health/ready", checker.ReadyHandler())
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	mux := http.NewServeMux()
	matchHandler.Register(mux)
	lemma.NewHandler(searcher, repo, tracker).Register(mux)
	corpus.NewHandler(corpus.NewIngester(repo, publisher, applier), index).Register(mux)
	analytics.NewHandler(agg, statsStore).Register(mux)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.CORS(cfg.CORS),
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit)
		middlewares = append(middlewares, middleware.RateLimit(limiter))
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := limiter.Sweep(visitorIdleTimeout); n > 0 {
						slog.Debug("rate limiter swept idle clients", "removed", n)
					}
				}
			}
		}()
	}
	middlewares = append(middlewares, middleware.Timeout(cfg.Matcher.QueryTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middlewares...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("matcher service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// Handlers may still be tracking events until Shutdown returns.
	<-shutdownDone

	slog.Info("matcher service stopped")
}
