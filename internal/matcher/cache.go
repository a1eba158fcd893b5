package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/resilience"
)

const keyPrefix = "line-to-vec:"

// Store is the key-value backend of the ranking cache. *pkgredis.Client
// implements it.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache memoises rankings in Redis and collapses concurrent identical
// queries into one computation. Backend failures degrade to cache misses.
type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	// generation is bumped by Invalidate so rankings computed against an
	// older corpus are neither shared with newer requests nor stored.
	generation atomic.Uint64
}

// NewCache wraps store. m may be nil.
func NewCache(store Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	c := &Cache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "ranking-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("ranking-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns a cached ranking.
func (c *Cache) Get(ctx context.Context, key string) (*Ranking, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == "" {
		if err != nil {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var ranking Ranking
	if err := json.Unmarshal([]byte(data), &ranking); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &ranking, true
}

// Set stores a ranking under key.
func (c *Cache) Set(ctx context.Context, key string, ranking *Ranking) {
	data, err := json.Marshal(ranking)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached ranking for (candidate, opts) or computes
// and stores it. The boolean reports a cache hit.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	candidate Candidate,
	opts Options,
	compute func(ctx context.Context) (*Ranking, error),
) (*Ranking, bool, error) {
	gen := c.generation.Load()
	key := BuildKey(candidate, opts, gen)
	if ranking, ok := c.Get(ctx, key); ok {
		return ranking, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		ranking, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() != gen {
			c.logger.Debug("cache invalidated during computation, not storing", "key", key)
			return ranking, nil
		}
		c.Set(ctx, key, ranking)
		return ranking, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Ranking), false, nil
}

// Invalidate drops every cached ranking.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.generation.Add(1)
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.FlushByPattern(ctx, keyPrefix+"*")
		return err
	})
	if err != nil {
		return fmt.Errorf("invalidating ranking cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since start.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key for one corpus generation. Exclusions are
// order-insensitive.
func BuildKey(candidate Candidate, opts Options, generation uint64) string {
	exclude := slices.Clone(opts.Exclude)
	slices.Sort(exclude)
	exclude = slices.Compact(exclude)

	weights := make([]string, len(opts.Weights))
	for i, w := range opts.Weights {
		weights[i] = strconv.Itoa(w)
	}
	raw := strings.Join([]string{
		candidate.Key(),
		"w=" + strings.Join(weights, ","),
		"x=" + strings.Join(exclude, ","),
		"limit=" + strconv.Itoa(opts.Limit),
		"gen=" + strconv.FormatUint(generation, 10),
	}, "|")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
