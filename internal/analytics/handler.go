package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotSource returns the most recently persisted statistics, or nil when
// none has been saved yet. *aggregator.Store implements it.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context) (*AggregatedStats, error)
}

// Handler serves live and persisted match statistics.
type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotSource
	logger     *slog.Logger
}

// NewHandler serves stats from aggregator. snapshots may be nil, in which
// case the snapshot route is not mounted.
func NewHandler(aggregator *Aggregator, snapshots SnapshotSource) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Register mounts the analytics routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	if h.snapshots != nil {
		mux.HandleFunc("GET /api/v1/analytics/snapshot", h.Snapshot)
	}
}

// Stats returns the live aggregate. ?top=N trims the ranked lists to N.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, ok := parseTop(r)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
		return
	}
	stats := h.aggregator.Stats()
	trim(&stats, top)
	h.writeJSON(w, http.StatusOK, stats)
}

// Snapshot returns the last statistics written to Postgres.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	top, ok := parseTop(r)
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a positive integer"})
		return
	}
	stats, err := h.snapshots.LatestSnapshot(r.Context())
	switch {
	case err != nil:
		h.logger.Error("reading analytics snapshot", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	case stats == nil:
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshot yet"})
	default:
		trim(stats, top)
		h.writeJSON(w, http.StatusOK, stats)
	}
}

func parseTop(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("top")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil && n > 0
}

func trim(stats *AggregatedStats, top int) {
	if top <= 0 {
		return
	}
	if len(stats.TopCandidates) > top {
		stats.TopCandidates = stats.TopCandidates[:top]
	}
	if len(stats.ZeroMatchLemmaQueries) > top {
		stats.ZeroMatchLemmaQueries = stats.ZeroMatchLemmaQueries[:top]
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
