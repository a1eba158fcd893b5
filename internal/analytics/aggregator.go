package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// AggregatedStats is the service-level view served on /api/v1/analytics.
type AggregatedStats struct {
	TotalRankings         int64            `json:"total_rankings"`
	RankingsByKind        map[string]int64 `json:"rankings_by_kind"`
	FailedRankings        int64            `json:"failed_rankings"`
	CacheHits             int64            `json:"cache_hits"`
	CacheMisses           int64            `json:"cache_misses"`
	ZeroScoreRankings     int64            `json:"zero_score_rankings"`
	AvgLatencyMs          float64          `json:"avg_latency_ms"`
	P50LatencyMs          int64            `json:"p50_latency_ms"`
	P95LatencyMs          int64            `json:"p95_latency_ms"`
	P99LatencyMs          int64            `json:"p99_latency_ms"`
	TopCandidates         []Count          `json:"top_candidates"`
	TotalLemmaSearches    int64            `json:"total_lemma_searches"`
	LemmaSearchesByType   map[string]int64 `json:"lemma_searches_by_type"`
	ZeroMatchLemmaQueries []Count          `json:"zero_match_lemma_queries"`
	RankingsPerMinute     float64          `json:"rankings_per_minute"`
}

// Count pairs a key with its occurrences.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running statistics.
type Aggregator struct {
	mu              sync.RWMutex
	totalRankings   int64
	failedRankings  int64
	cacheHits       int64
	cacheMisses     int64
	zeroScores      int64
	rankingsByKind  map[string]int64
	latencies       []int64
	candidateCounts map[string]int64
	lemmaSearches   int64
	lemmaByType     map[string]int64
	zeroMatchLemmas map[string]int64
	startTime       time.Time
	now             func() time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator. consumer may be nil when events are
// recorded directly.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		rankingsByKind:  make(map[string]int64),
		latencies:       make([]int64, 0, 1024),
		candidateCounts: make(map[string]int64),
		lemmaByType:     make(map[string]int64),
		zeroMatchLemmas: make(map[string]int64),
		startTime:       time.Now(),
		now:             time.Now,
		consumer:        consumer,
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the consumer that Start runs.
func (a *Aggregator) SetConsumer(consumer *kafka.Consumer) {
	a.consumer = consumer
}

// Start consumes events until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent decodes match events for the Kafka consumer. Undecodable
// messages are logged and skipped so they are still committed.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Track records event directly, standing in for a Collector when events
// do not go through Kafka.
func (a *Aggregator) Track(event Event) {
	a.Record(event)
}

// Record folds one event into the statistics.
func (a *Aggregator) Record(event Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventRank:
		if event.Rank == nil {
			return
		}
		a.recordRank(event.LatencyMs, *event.Rank)
	case EventLemmaSearch:
		if event.Lemma == nil {
			return
		}
		a.recordLemma(*event.Lemma)
	default:
		a.logger.Debug("ignoring analytics event", "type", event.Type)
	}
}

func (a *Aggregator) recordRank(latencyMs int64, ev RankEvent) {
	a.totalRankings++
	a.rankingsByKind[ev.CandidateKind]++
	if ev.Error != "" {
		a.failedRankings++
		return
	}
	if ev.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if ev.TopScore == 0 {
		a.zeroScores++
	}
	if len(a.latencies) == maxLatencySamples {
		copy(a.latencies, a.latencies[1:])
		a.latencies = a.latencies[:maxLatencySamples-1]
	}
	a.latencies = append(a.latencies, latencyMs)
	a.candidateCounts[ev.Candidate]++
}

func (a *Aggregator) recordLemma(ev LemmaEvent) {
	a.lemmaSearches++
	a.lemmaByType[ev.QueryType]++
	if ev.MatchCountTotal == 0 {
		a.zeroMatchLemmas[ev.QueryType+":"+strings.Join(ev.Lemmas, " ")]++
	}
}

// Stats snapshots the current statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRankings:         a.totalRankings,
		RankingsByKind:        cloneCounts(a.rankingsByKind),
		FailedRankings:        a.failedRankings,
		CacheHits:             a.cacheHits,
		CacheMisses:           a.cacheMisses,
		ZeroScoreRankings:     a.zeroScores,
		TopCandidates:         topN(a.candidateCounts, 10),
		TotalLemmaSearches:    a.lemmaSearches,
		LemmaSearchesByType:   cloneCounts(a.lemmaByType),
		ZeroMatchLemmaQueries: topN(a.zeroMatchLemmas, 10),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.RankingsPerMinute = float64(a.totalRankings) / elapsed
	}
	return stats
}

func cloneCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then key, and keeps the first n.
func topN(counts map[string]int64, n int) []Count {
	result := make([]Count, 0, len(counts))
	for key, count := range counts {
		result = append(result, Count{Key: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
