package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	out := flag.String("out", "", "snapshot file to write (defaults to corpus.snapshotPath)")
	verify := flag.Bool("verify", false, "only read and check an existing snapshot")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	path := *out
	if path == "" {
		path = cfg.Corpus.SnapshotPath
	}
	if path == "" {
		slog.Error("no snapshot path: pass -out or set corpus.snapshotPath")
		os.Exit(2)
	}

	if *verify {
		_, info, err := corpus.ReadSnapshot(path)
		if err != nil {
			slog.Error("snapshot check failed", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("snapshot ok",
			"path", path,
			"fragments", info.Fragments,
			"encodings", info.Encodings,
			"created_at", info.CreatedAt,
		)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// The loader must not read or write the snapshot itself here.
	loadCfg := cfg.Corpus
	loadCfg.SnapshotPath = ""
	index := corpus.NewIndex(nil)
	if err := corpus.NewLoader(index, corpus.NewRepository(db), loadCfg).Reload(ctx); err != nil {
		slog.Error("failed to load corpus", "error", err)
		os.Exit(1)
	}
	entries, err := index.AllTransliteratedEncodings(ctx)
	if err != nil {
		slog.Error("failed to read corpus", "error", err)
		os.Exit(1)
	}

	info, err := corpus.WriteSnapshot(path, entries, time.Now())
	if err != nil {
		slog.Error("failed to write snapshot", "path", path, "error", err)
		os.Exit(1)
	}
	slog.Info("snapshot written",
		"path", path,
		"fragments", info.Fragments,
		"encodings", info.Encodings,
	)
}
