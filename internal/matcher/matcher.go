// Package matcher ranks corpus fragments by how well their line-to-vec
// encodings continue a candidate fragment's encodings.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/tracing"
)

// DefaultLimit is the number of fragments returned per ordering.
const DefaultLimit = 15

// Corpus supplies encodings. AllTransliteratedEncodings must return entries
// in a stable order; ties in a ranking follow it.
type Corpus interface {
	GetEncodings(ctx context.Context, id string) ([]linetovec.Sequence, error)
	AllTransliteratedEncodings(ctx context.Context) ([]corpus.Entry, error)
}

// Options tune one ranking query.
type Options struct {
	Weights linetovec.Weights
	// Exclude lists fragment ids that must not appear in the results.
	Exclude []string
	// Limit caps each ordering; zero or less means unlimited.
	Limit int
}

// DefaultOptions returns the default weights and limit.
func DefaultOptions() Options {
	return Options{Weights: linetovec.DefaultWeights, Limit: DefaultLimit}
}

// Matcher runs ranking queries against a Corpus.
type Matcher struct {
	corpus  Corpus
	workers int
	timeout time.Duration
	sem     *semaphore.Weighted
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds a Matcher. m may be nil.
func New(c Corpus, cfg config.MatcherConfig, m *metrics.Metrics) *Matcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	concurrent := cfg.MaxConcurrentQueries
	if concurrent <= 0 {
		concurrent = 1
	}
	return &Matcher{
		corpus:  c,
		workers: workers,
		timeout: cfg.QueryTimeout,
		sem:     semaphore.NewWeighted(concurrent),
		metrics: m,
		logger:  slog.Default().With("component", "matcher"),
	}
}

// entryScore is the best pair of scores for one corpus entry.
type entryScore struct {
	ok       bool
	score    int
	weighted int
}

// Rank scores every corpus fragment against the candidate and returns the
// top fragments under both orderings.
func (m *Matcher) Rank(ctx context.Context, c Candidate, opts Options) (*Ranking, error) {
	start := time.Now()
	ranking, err := m.rank(ctx, c, opts)
	m.observe(c, err)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("ranking computed",
		"candidate", c.Key(),
		"returned", len(ranking.Score),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return ranking, nil
}

func (m *Matcher) rank(ctx context.Context, c Candidate, opts Options) (*Ranking, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	resolveCtx, span := tracing.StartChildSpan(ctx, "matcher.resolve")
	candidates, exclude, err := m.resolve(resolveCtx, c, opts.Exclude)
	span.SetAttr("encodings", len(candidates))
	span.End()
	if err != nil {
		return nil, err
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for a ranking slot: %v", apperrors.ErrTimeout, err)
	}
	defer m.sem.Release(1)

	entries, err := m.corpus.AllTransliteratedEncodings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus encodings: %w", err)
	}

	scanCtx, span := tracing.StartChildSpan(ctx, "matcher.scan")
	results, err := m.scan(scanCtx, candidates, entries, exclude, opts.Weights)
	span.SetAttr("entries", len(entries))
	span.SetAttr("workers", m.workers)
	span.End()
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RankScannedEntries.Observe(float64(len(entries)))
	}

	_, span = tracing.StartChildSpan(ctx, "matcher.reduce")
	defer span.End()
	ranker := NewRanker()
	for i, r := range results {
		if r.ok {
			ranker.Insert(entries[i].ID, r.score, r.weighted)
		}
	}
	ranking := ranker.Ranking(opts.Limit)
	return &ranking, nil
}

// resolve turns the candidate into encodings and the exclusion set.
func (m *Matcher) resolve(ctx context.Context, c Candidate, excluded []string) ([]linetovec.Sequence, map[string]struct{}, error) {
	exclude := make(map[string]struct{}, len(excluded)+1)
	for _, id := range excluded {
		exclude[id] = struct{}{}
	}

	var seqs []linetovec.Sequence
	switch c.Kind() {
	case KindIdentifier:
		id, _ := c.Identifier()
		found, err := m.corpus.GetEncodings(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if len(found) == 0 {
			return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrNoEncoding, id)
		}
		exclude[id] = struct{}{}
		seqs = found
	case KindSequence:
		seqs, _ = c.Sequences()
		if len(seqs) == 0 {
			return nil, nil, fmt.Errorf("%w: no sequences supplied", apperrors.ErrNoEncoding)
		}
	default:
		return nil, nil, fmt.Errorf("%w: candidate is neither an identifier nor a sequence", apperrors.ErrInvalidCandidate)
	}
	return seqs, exclude, nil
}

// scan scores entries in parallel. Each worker owns a contiguous block of
// result slots, so the result order is the corpus order regardless of
// scheduling.
func (m *Matcher) scan(
	ctx context.Context,
	candidates []linetovec.Sequence,
	entries []corpus.Entry,
	exclude map[string]struct{},
	weights linetovec.Weights,
) ([]entryScore, error) {
	results := make([]entryScore, len(entries))
	if len(entries) == 0 {
		return results, nil
	}
	workers := min(m.workers, len(entries))
	block := (len(entries) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(entries); lo += block {
		hi := min(lo+block, len(entries))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				entry := entries[i]
				if _, skip := exclude[entry.ID]; skip {
					continue
				}
				results[i] = scoreEntry(candidates, entry.Encodings, weights)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: ranking aborted: %v", apperrors.ErrTimeout, err)
	}
	return results, nil
}

// scoreEntry takes the best scores over every candidate and entry encoding
// pair. An entry without encodings yields no result.
func scoreEntry(candidates, encodings []linetovec.Sequence, weights linetovec.Weights) entryScore {
	var best entryScore
	for _, a := range candidates {
		for _, b := range encodings {
			score, weighted := linetovec.Scores(a, b, weights)
			best.ok = true
			best.score = max(best.score, score)
			best.weighted = max(best.weighted, weighted)
		}
	}
	return best
}

func (m *Matcher) observe(c Candidate, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.RankQueriesTotal.WithLabelValues(c.Kind().String(), outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrNoEncoding):
		return "no_encoding"
	case errors.Is(err, apperrors.ErrFragmentNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}
