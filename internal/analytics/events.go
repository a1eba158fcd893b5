package analytics

import "time"

type EventType string

const (
	EventRank        EventType = "rank"
	EventLemmaSearch EventType = "lemma_search"
)

// Event is the envelope published to the match events topic. Exactly one of
// Rank and Lemma is set, matching Type.
type Event struct {
	Type      EventType   `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	LatencyMs int64       `json:"latency_ms"`
	Timestamp time.Time   `json:"timestamp"`
	Rank      *RankEvent  `json:"rank,omitempty"`
	Lemma     *LemmaEvent `json:"lemma,omitempty"`
}

// RankEvent describes one line-to-vec ranking query.
type RankEvent struct {
	Candidate        string `json:"candidate"`
	CandidateKind    string `json:"candidate_kind"`
	WeightTable      string `json:"weight_table"`
	Returned         int    `json:"returned"`
	TopScore         int    `json:"top_score"`
	TopScoreWeighted int    `json:"top_score_weighted"`
	CacheHit         bool   `json:"cache_hit"`
	Error            string `json:"error,omitempty"`
}

// LemmaEvent describes one lemma search.
type LemmaEvent struct {
	QueryType       string   `json:"query_type"`
	Lemmas          []string `json:"lemmas"`
	Fragments       int      `json:"fragments"`
	MatchCountTotal int      `json:"match_count_total"`
}
