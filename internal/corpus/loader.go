package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/resilience"
)

// Source supplies the full corpus. *Repository implements it.
type Source interface {
	AllTransliteratedEncodings(ctx context.Context) ([]Entry, error)
}

// Loader fills an Index from a snapshot file or the Source and keeps it fresh.
type Loader struct {
	index  *Index
	source Source
	cfg    config.CorpusConfig
	retry  resilience.RetryConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewLoader(index *Index, source Source, cfg config.CorpusConfig) *Loader {
	return &Loader{
		index:  index,
		source: source,
		cfg:    cfg,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.LoadAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
		},
		logger: slog.Default().With("component", "corpus-loader"),
		now:    time.Now,
	}
}

// Load serves the snapshot when one is configured and readable, and falls
// back to the Source otherwise.
func (l *Loader) Load(ctx context.Context) error {
	if l.cfg.SnapshotPath != "" {
		entries, info, err := ReadSnapshot(l.cfg.SnapshotPath)
		switch {
		case err == nil:
			l.index.Load(entries)
			l.logger.Info("corpus loaded from snapshot",
				"path", l.cfg.SnapshotPath,
				"fragments", info.Fragments,
				"encodings", info.Encodings,
				"created_at", info.CreatedAt,
			)
			return nil
		case errors.Is(err, fs.ErrNotExist):
			l.logger.Info("no corpus snapshot yet", "path", l.cfg.SnapshotPath)
		default:
			l.logger.Warn("ignoring unreadable corpus snapshot", "path", l.cfg.SnapshotPath, "error", err)
		}
	}
	return l.Reload(ctx)
}

// Reload reads the corpus from the Source, replaces the index and refreshes
// the snapshot.
func (l *Loader) Reload(ctx context.Context) error {
	start := l.now()
	var entries []Entry
	err := resilience.Retry(ctx, "corpus-load", l.retry, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, l.cfg.LoadTimeout, "corpus-load", func(ctx context.Context) error {
			var err error
			entries, err = l.source.AllTransliteratedEncodings(ctx)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	l.index.Load(entries)
	fragments, encodings := l.index.Size()
	l.logger.Info("corpus loaded",
		"fragments", fragments,
		"encodings", encodings,
		"took_ms", l.now().Sub(start).Milliseconds(),
	)

	if l.cfg.SnapshotPath != "" {
		if _, err := WriteSnapshot(l.cfg.SnapshotPath, entries, l.now()); err != nil {
			l.logger.Error("writing corpus snapshot failed", "path", l.cfg.SnapshotPath, "error", err)
		}
	}
	return nil
}

// StartPeriodicReload reloads every cfg.ReloadInterval until ctx is done,
// calling onReload after each successful reload.
func (l *Loader) StartPeriodicReload(ctx context.Context, onReload func(context.Context)) {
	if l.cfg.ReloadInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(l.cfg.ReloadInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := l.Reload(ctx); err != nil {
					l.logger.Error("periodic corpus reload failed", "error", err)
					continue
				}
				if onReload != nil {
					onReload(ctx)
				}
			}
		}
	}()
}
