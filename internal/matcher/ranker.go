package matcher

import (
	"container/heap"
	"sort"
)

// Mode selects which of the two scores a ranking is ordered by.
type Mode int

const (
	Unweighted Mode = iota
	Weighted
)

// ScoredFragment is one row of a ranking.
type ScoredFragment struct {
	ID    string `json:"museumNumber"`
	Score int    `json:"score"`
}

// Ranking holds both orderings of a query's results.
type Ranking struct {
	Score         []ScoredFragment `json:"score"`
	ScoreWeighted []ScoredFragment `json:"scoreWeighted"`
}

// Ranker collects the best score per fragment under both modes. A fragment
// keeps the first score that is strictly greater than every earlier one, so
// equal scores never displace the one already recorded. Results are ordered
// by descending score with ties broken by first insertion.
type Ranker struct {
	index  map[string]int
	ids    []string
	scores [2][]int
}

func NewRanker() *Ranker {
	return &Ranker{index: make(map[string]int)}
}

// Insert records one observation of id.
func (r *Ranker) Insert(id string, score, weighted int) {
	i, ok := r.index[id]
	if !ok {
		r.index[id] = len(r.ids)
		r.ids = append(r.ids, id)
		r.scores[Unweighted] = append(r.scores[Unweighted], score)
		r.scores[Weighted] = append(r.scores[Weighted], weighted)
		return
	}
	if score > r.scores[Unweighted][i] {
		r.scores[Unweighted][i] = score
	}
	if weighted > r.scores[Weighted][i] {
		r.scores[Weighted][i] = weighted
	}
}

// Len is the number of distinct fragments seen.
func (r *Ranker) Len() int {
	return len(r.ids)
}

// Top returns up to limit fragments for mode. A non-positive limit returns
// all of them.
func (r *Ranker) Top(mode Mode, limit int) []ScoredFragment {
	scores := r.scores[mode]
	if limit <= 0 || limit >= len(scores) {
		order := make([]int, len(scores))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})
		return r.rows(mode, order)
	}

	h := &rankHeap{scores: scores}
	for i := range scores {
		if h.Len() < limit {
			heap.Push(h, i)
			continue
		}
		if h.ranksAbove(i, h.items[0]) {
			h.items[0] = i
			heap.Fix(h, 0)
		}
	}
	order := make([]int, h.Len())
	for i := len(order) - 1; i >= 0; i-- {
		order[i] = heap.Pop(h).(int)
	}
	return r.rows(mode, order)
}

// Ranking returns both orderings truncated to limit.
func (r *Ranker) Ranking(limit int) Ranking {
	return Ranking{
		Score:         r.Top(Unweighted, limit),
		ScoreWeighted: r.Top(Weighted, limit),
	}
}

func (r *Ranker) rows(mode Mode, order []int) []ScoredFragment {
	out := make([]ScoredFragment, len(order))
	for n, i := range order {
		out[n] = ScoredFragment{ID: r.ids[i], Score: r.scores[mode][i]}
	}
	return out
}

// rankHeap is a min-heap of insertion positions whose root is the
// lowest-ranked item kept so far.
type rankHeap struct {
	scores []int
	items  []int
}

// ranksAbove reports whether insertion position a is ordered before b.
func (h *rankHeap) ranksAbove(a, b int) bool {
	if h.scores[a] != h.scores[b] {
		return h.scores[a] > h.scores[b]
	}
	return a < b
}

func (h *rankHeap) Len() int           { return len(h.items) }
func (h *rankHeap) Less(i, j int) bool { return h.ranksAbove(h.items[j], h.items[i]) }
func (h *rankHeap) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *rankHeap) Push(x any) {
	h.items = append(h.items, x.(int))
}

func (h *rankHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
