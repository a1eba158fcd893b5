package lemma

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/middleware"
)

const maxBodyBytes = 8 << 20

// Engine runs lemma searches. *Searcher implements it.
type Engine interface {
	Search(ctx context.Context, hits []Hit, q Query) (*Result, error)
}

// LineSource loads stored lemma lines for fragments.
type LineSource interface {
	LemmaLines(ctx context.Context, ids []string) ([]Hit, error)
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event analytics.Event)
}

// SearchRequest is the body of POST /api/v1/lemmas/search. Hits are searched
// as given; Fragments are loaded from the line source and appended.
type SearchRequest struct {
	Type      string   `json:"type"`
	Lemmas    []string `json:"lemmas"`
	Hits      []Hit    `json:"hits"`
	Fragments []string `json:"fragments"`
}

// Handler serves the lemma search API.
type Handler struct {
	engine  Engine
	source  LineSource
	tracker Tracker
	logger  *slog.Logger
}

// NewHandler builds a Handler. source and tracker may be nil.
func NewHandler(engine Engine, source LineSource, tracker Tracker) *Handler {
	return &Handler{
		engine:  engine,
		source:  source,
		tracker: tracker,
		logger:  slog.Default().With("component", "lemma-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/lemmas/search", h.Search)
}

// Search filters the requested hits by the lemma query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body"))
		return
	}
	queryType, err := ParseQueryType(req.Type)
	if err != nil {
		h.writeError(w, err)
		return
	}
	q := Query{Type: queryType, Lemmas: req.Lemmas}

	hits := req.Hits
	if len(req.Fragments) > 0 {
		if h.source == nil {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"fragment lookup is not available"))
			return
		}
		stored, err := h.source.LemmaLines(ctx, req.Fragments)
		if err != nil {
			log.Error("loading lemma lines failed", "fragments", len(req.Fragments), "error", err)
			h.writeError(w, err)
			return
		}
		hits = append(hits, stored...)
	}

	result, err := h.engine.Search(ctx, hits, q)
	latency := time.Since(start)
	if err != nil {
		log.Warn("lemma search failed", "type", q.Type, "error", err)
		h.writeError(w, err)
		return
	}
	h.track(ctx, q, result, latency)
	log.Info("lemma search served",
		"type", q.Type,
		"lemmas", len(q.Lemmas),
		"hits", len(hits),
		"match_count_total", result.MatchCountTotal,
		"latency_ms", latency.Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) track(ctx context.Context, q Query, result *Result, latency time.Duration) {
	if h.tracker == nil {
		return
	}
	h.tracker.Track(analytics.Event{
		Type:      analytics.EventLemmaSearch,
		RequestID: middleware.GetRequestID(ctx),
		LatencyMs: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
		Lemma: &analytics.LemmaEvent{
			QueryType:       strings.ToLower(string(q.Type)),
			Lemmas:          q.Lemmas,
			Fragments:       len(result.Items),
			MatchCountTotal: result.MatchCountTotal,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		message = "lemma search failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
