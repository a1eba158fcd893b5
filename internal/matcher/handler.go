package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/tracing"
)

// Service ranks candidates. *Matcher implements it.
type Service interface {
	Rank(ctx context.Context, c Candidate, opts Options) (*Ranking, error)
}

// Tracker receives analytics events. *analytics.Collector implements it.
type Tracker interface {
	Track(event analytics.Event)
}

// Handler serves the line-to-vec HTTP API.
type Handler struct {
	service        Service
	cache          *Cache
	tracker        Tracker
	metrics        *metrics.Metrics
	defaultLimit   int
	maxLimit       int
	defaultWeights string
	tracing        bool
	logger         *slog.Logger
}

// HandlerOption configures optional Handler collaborators.
type HandlerOption func(*Handler)

// WithCache serves rankings through c.
func WithCache(c *Cache) HandlerOption {
	return func(h *Handler) { h.cache = c }
}

// WithTracker reports every ranking to t.
func WithTracker(t Tracker) HandlerOption {
	return func(h *Handler) { h.tracker = t }
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithTracing logs a span tree per request.
func WithTracing(enabled bool) HandlerOption {
	return func(h *Handler) { h.tracing = enabled }
}

func NewHandler(service Service, cfg config.MatcherConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:        service,
		defaultLimit:   cfg.ResultLimit,
		maxLimit:       cfg.MaxResultLimit,
		defaultWeights: cfg.WeightTable,
		logger:         slog.Default().With("component", "matcher-handler"),
	}
	if h.defaultLimit <= 0 {
		h.defaultLimit = DefaultLimit
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the matcher routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/fragments/{id}/match", h.MatchFragment)
	mux.HandleFunc("GET /api/v1/match", h.MatchSequence)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// MatchFragment ranks the corpus against a stored fragment.
func (h *Handler) MatchFragment(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidCandidate, http.StatusBadRequest, "fragment id is required"))
		return
	}
	h.serve(w, r, ByIdentifier(id))
}

// MatchSequence ranks the corpus against encodings given as
// ?sequence=1,2,1;0,1,1.
func (h *Handler) MatchSequence(w http.ResponseWriter, r *http.Request) {
	seqs, err := linetovec.ParseSequences(r.URL.Query().Get("sequence"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.serve(w, r, BySequence(seqs...))
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, candidate Candidate) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	opts, table, err := h.options(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var root *tracing.Span
	if h.tracing {
		ctx, root = tracing.StartSpan(ctx, "rank", middleware.GetRequestID(ctx))
		root.SetAttr("candidate", candidate.Key())
	}

	var ranking *Ranking
	cacheHit := false
	if h.cache != nil {
		ranking, cacheHit, err = h.cache.GetOrCompute(ctx, candidate, opts, func(ctx context.Context) (*Ranking, error) {
			return h.service.Rank(ctx, candidate, opts)
		})
	} else {
		ranking, err = h.service.Rank(ctx, candidate, opts)
	}
	latency := time.Since(start)

	if root != nil {
		root.SetAttr("cache_hit", cacheHit)
		root.End()
		root.Log(log)
	}
	h.track(ctx, candidate, table, ranking, cacheHit, latency, err)

	if err != nil {
		log.Warn("ranking failed", "candidate", candidate.Key(), "error", err)
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		}
		h.metrics.RankLatency.WithLabelValues(status).Observe(latency.Seconds())
	}
	log.Info("ranking served",
		"candidate", candidate.Key(),
		"weights", table,
		"returned", len(ranking.Score),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, ranking)
}

// options reads weights, exclude and limit from the query string.
func (h *Handler) options(r *http.Request) (Options, string, error) {
	q := r.URL.Query()
	opts := Options{Limit: h.defaultLimit}

	table := q.Get("weights")
	if table == "" {
		table = h.defaultWeights
	}
	weights, ok := linetovec.WeightsByName(table)
	if !ok {
		return opts, table, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"unknown weight table %q", table)
	}
	if table == "" {
		table = "default"
	}
	opts.Weights = weights

	for _, raw := range q["exclude"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.Exclude = append(opts.Exclude, id)
			}
		}
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return opts, table, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"limit must be an integer")
		}
		// Zero or less asks for every fragment, up to the configured maximum.
		if h.maxLimit > 0 && (limit < 1 || limit > h.maxLimit) {
			limit = h.maxLimit
		}
		opts.Limit = limit
	}
	return opts, table, nil
}

func (h *Handler) track(ctx context.Context, c Candidate, table string, ranking *Ranking, cacheHit bool, latency time.Duration, err error) {
	if h.tracker == nil {
		return
	}
	ev := &analytics.RankEvent{
		Candidate:     c.Key(),
		CandidateKind: c.Kind().String(),
		WeightTable:   table,
		CacheHit:      cacheHit,
	}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Returned = len(ranking.Score)
		if len(ranking.Score) > 0 {
			ev.TopScore = ranking.Score[0].Score
		}
		if len(ranking.ScoreWeighted) > 0 {
			ev.TopScoreWeighted = ranking.ScoreWeighted[0].Score
		}
	}
	h.tracker.Track(analytics.Event{
		Type:      analytics.EventRank,
		RequestID: middleware.GetRequestID(ctx),
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		Rank:      ev,
	})
}

// CacheStats reports ranking cache hit rates.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate drops every cached ranking.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to a status. Server-side failures hide their detail.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "ranking failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
