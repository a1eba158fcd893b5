package lemma

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
)

// Hit is one corpus search result: a fragment and some of its lines.
// LineIndexes runs parallel to Lines; when omitted, lines are numbered from 0.
type Hit struct {
	ID          string `json:"museumNumber"`
	LineIndexes []int  `json:"lineIndexes,omitempty"`
	Lines       []Line `json:"lines"`
}

// Item is a hit reduced to its matching lines.
type Item struct {
	ID            string `json:"museumNumber"`
	MatchingLines []int  `json:"matchingLines"`
	MatchCount    int    `json:"matchCount"`
}

// Result lists hits with at least one matching line, in input order.
type Result struct {
	Items           []Item `json:"items"`
	MatchCountTotal int    `json:"matchCountTotal"`
}

func validateHits(hits []Hit) error {
	for _, h := range hits {
		if len(h.LineIndexes) > 0 && len(h.LineIndexes) != len(h.Lines) {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"hit %s has %d line indexes for %d lines", h.ID, len(h.LineIndexes), len(h.Lines))
		}
	}
	return nil
}

func evaluate(hit Hit, q Query) (Item, bool) {
	item := Item{ID: hit.ID}
	if !q.matchesHit(hit.Lines) {
		return item, false
	}
	for i, line := range hit.Lines {
		if !q.matchesLine(line) {
			continue
		}
		index := i
		if len(hit.LineIndexes) > 0 {
			index = hit.LineIndexes[i]
		}
		item.MatchingLines = append(item.MatchingLines, index)
	}
	item.MatchCount = len(item.MatchingLines)
	return item, item.MatchCount > 0
}

func collect(items []Item, matched []bool) *Result {
	result := &Result{Items: []Item{}}
	for i, item := range items {
		if !matched[i] {
			continue
		}
		result.Items = append(result.Items, item)
		result.MatchCountTotal += item.MatchCount
	}
	return result
}

// Search filters hits one after another on the calling goroutine.
func Search(ctx context.Context, hits []Hit, q Query) (*Result, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	if err := validateHits(hits); err != nil {
		return nil, err
	}
	items := make([]Item, len(hits))
	matched := make([]bool, len(hits))
	for i, hit := range hits {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: lemma search aborted: %v", apperrors.ErrTimeout, err)
		}
		items[i], matched[i] = evaluate(hit, q)
	}
	return collect(items, matched), nil
}

// Searcher evaluates hits concurrently on a bounded goroutine pool shared by
// all requests.
type Searcher struct {
	pool    *ants.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSearcher sizes the pool from cfg, defaulting to GOMAXPROCS.
func NewSearcher(cfg config.LemmaConfig, m *metrics.Metrics) (*Searcher, error) {
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("creating lemma pool: %w", err)
	}
	return &Searcher{
		pool:    pool,
		metrics: m,
		logger:  slog.Default().With("component", "lemma-searcher"),
	}, nil
}

// Search returns the same result as the package-level Search.
func (s *Searcher) Search(ctx context.Context, hits []Hit, q Query) (*Result, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	if err := validateHits(hits); err != nil {
		return nil, err
	}

	items := make([]Item, len(hits))
	matched := make([]bool, len(hits))
	var wg sync.WaitGroup
	for i := range hits {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			items[i], matched[i] = evaluate(hits[i], q)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("%w: submitting lemma search: %v", apperrors.ErrInternal, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: lemma search aborted: %v", apperrors.ErrTimeout, err)
	}

	result := collect(items, matched)
	if s.metrics != nil {
		s.metrics.LemmaSearchesTotal.WithLabelValues(string(q.Type)).Inc()
		s.metrics.LemmaMatchedLines.Observe(float64(result.MatchCountTotal))
	}
	logger.FromContext(ctx).Debug("lemma search computed",
		"type", q.Type,
		"hits", len(hits),
		"items", len(result.Items),
		"match_count_total", result.MatchCountTotal,
	)
	return result, nil
}

// Release stops the pool's workers.
func (s *Searcher) Release() {
	s.pool.Release()
	s.logger.Info("lemma searcher released")
}
