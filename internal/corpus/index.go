package corpus

import (
	"cmp"
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
)

// Index is the in-memory corpus served to queries.
//
// The transliterated entries live in a slice sorted by ID that is replaced,
// never modified, on every write. A reader holding a slice from
// AllTransliteratedEncodings keeps a consistent view while updates land.
type Index struct {
	mu        sync.RWMutex
	byID      map[string][]linetovec.Sequence
	sorted    []Entry
	encodings int
	metrics   *metrics.Metrics
}

// NewIndex returns an empty index. m may be nil.
func NewIndex(m *metrics.Metrics) *Index {
	return &Index{
		byID:    make(map[string][]linetovec.Sequence),
		metrics: m,
	}
}

// Load replaces the whole index with entries.
func (x *Index) Load(entries []Entry) {
	byID := make(map[string][]linetovec.Sequence, len(entries))
	for _, e := range entries {
		byID[e.ID] = e.Encodings
	}
	sorted := make([]Entry, 0, len(byID))
	for id, encodings := range byID {
		if len(encodings) > 0 {
			sorted = append(sorted, Entry{ID: id, Encodings: encodings})
		}
	}
	slices.SortFunc(sorted, compareEntries)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.byID = byID
	x.sorted = sorted
	x.encodings = EncodingCount(sorted)
	x.record("reload")
}

// Upsert adds or replaces one fragment.
func (x *Index) Upsert(e Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.byID[e.ID] = e.Encodings

	i, found := slices.BinarySearchFunc(x.sorted, e.ID, searchByID)
	next := slices.Clone(x.sorted)
	switch {
	case found && len(e.Encodings) > 0:
		x.encodings += len(e.Encodings) - len(next[i].Encodings)
		next[i] = e
	case found:
		x.encodings -= len(next[i].Encodings)
		next = slices.Delete(next, i, i+1)
	case len(e.Encodings) > 0:
		x.encodings += len(e.Encodings)
		next = slices.Insert(next, i, e)
	}
	x.sorted = next
	x.record("upsert")
}

// Remove drops id and reports whether it was present.
func (x *Index) Remove(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.byID[id]; !ok {
		return false
	}
	delete(x.byID, id)
	i, found := slices.BinarySearchFunc(x.sorted, id, searchByID)
	if found {
		x.encodings -= len(x.sorted[i].Encodings)
		x.sorted = slices.Delete(slices.Clone(x.sorted), i, i+1)
	}
	x.record("delete")
	return true
}

// GetEncodings returns the encodings of id, failing with ErrFragmentNotFound
// when the index does not know it.
func (x *Index) GetEncodings(ctx context.Context, id string) ([]linetovec.Sequence, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	encodings, ok := x.byID[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrFragmentNotFound, http.StatusNotFound, "fragment %s not found", id)
	}
	return encodings, nil
}

// AllTransliteratedEncodings returns the fragments with encodings, ordered by
// ID. The slice is shared and must not be modified.
func (x *Index) AllTransliteratedEncodings(ctx context.Context) ([]Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.sorted, nil
}

// Size returns the number of transliterated fragments and their encodings.
func (x *Index) Size() (fragments, encodings int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.sorted), x.encodings
}

// record must be called with mu held.
func (x *Index) record(kind string) {
	if x.metrics == nil {
		return
	}
	x.metrics.CorpusUpdatesTotal.WithLabelValues(kind).Inc()
	x.metrics.CorpusFragments.Set(float64(len(x.sorted)))
	x.metrics.CorpusEncodings.Set(float64(x.encodings))
}

func searchByID(e Entry, id string) int {
	return cmp.Compare(e.ID, id)
}

func compareEntries(a, b Entry) int {
	return cmp.Compare(a.ID, b.ID)
}
