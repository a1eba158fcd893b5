package corpus

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/lemma"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/logger"
)

const maxFragmentBytes = 4 << 20

// PutRequest is the body of PUT /api/v1/fragments/{id}.
type PutRequest struct {
	Lines      []linetovec.Line `json:"lines"`
	LemmaLines []lemma.Line     `json:"lemmaLines"`
}

// EncodingsResponse reports what the index holds for a fragment.
type EncodingsResponse struct {
	ID        string               `json:"museumNumber"`
	Encodings []linetovec.Sequence `json:"encodings"`
}

// Handler serves fragment writes and encoding lookups.
type Handler struct {
	ingester *Ingester
	index    *Index
	logger   *slog.Logger
}

// NewHandler builds a Handler. ingester may be nil, leaving the corpus
// read-only.
func NewHandler(ingester *Ingester, index *Index) *Handler {
	return &Handler{
		ingester: ingester,
		index:    index,
		logger:   slog.Default().With("component", "corpus-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/fragments/{id}/encodings", h.Encodings)
	if h.ingester != nil {
		mux.HandleFunc("PUT /api/v1/fragments/{id}", h.Put)
		mux.HandleFunc("DELETE /api/v1/fragments/{id}", h.Delete)
	}
}

// Encodings returns the indexed encodings of a fragment.
func (h *Handler) Encodings(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	encodings, err := h.index.GetEncodings(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if encodings == nil {
		encodings = []linetovec.Sequence{}
	}
	h.writeJSON(w, http.StatusOK, EncodingsResponse{ID: id, Encodings: encodings})
}

// Put stores a fragment's line records and lemma lines.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req PutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFragmentBytes)).Decode(&req); err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	entry, err := h.ingester.Put(ctx, Fragment{ID: r.PathValue("id"), Lines: req.Lines, LemmaLines: req.LemmaLines})
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		log.Error("storing fragment failed", "error", err)
		h.writeError(w, err)
		return
	}
	log.Info("fragment stored", "id", entry.ID, "encodings", len(entry.Encodings))
	if entry.Encodings == nil {
		entry.Encodings = []linetovec.Sequence{}
	}
	h.writeJSON(w, http.StatusOK, EncodingsResponse{ID: entry.ID, Encodings: entry.Encodings})
}

// Delete removes a fragment.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ingester.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	logger.FromContext(r.Context()).Info("fragment deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
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
	if status >= http.StatusInternalServerError {
		message = "request failed"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
