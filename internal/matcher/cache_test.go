package matcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *memoryStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

var sampleRanking = &Ranking{
	Score:         []ScoredFragment{{ID: "X.1", Score: 3}},
	ScoreWeighted: []ScoredFragment{{ID: "X.1", Score: 5}},
}

func TestCacheGetOrCompute(t *testing.T) {
	c := NewCache(newMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	compute := func(context.Context) (*Ranking, error) {
		calls.Add(1)
		return sampleRanking, nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(), compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, sampleRanking, got)

	got, hit, err = c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(), compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, sampleRanking, got)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheInvalidate(t *testing.T) {
	store := newMemoryStore()
	store.data["unrelated"] = "x"
	c := NewCache(store, time.Minute, nil)
	_, _, err := c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(),
		func(context.Context) (*Ranking, error) { return sampleRanking, nil })
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.Equal(t, map[string]string{"unrelated": "x"}, store.data)
}

func TestCacheDropsRankingComputedAcrossInvalidation(t *testing.T) {
	store := newMemoryStore()
	c := NewCache(store, time.Minute, nil)

	_, hit, err := c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(),
		func(ctx context.Context) (*Ranking, error) {
			// A corpus update lands while the ranking is being computed.
			require.NoError(t, c.Invalidate(ctx))
			return sampleRanking, nil
		})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, store.data)

	var calls atomic.Int32
	_, hit, err = c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(),
		func(context.Context) (*Ranking, error) {
			calls.Add(1)
			return sampleRanking, nil
		})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, store.data, 1)
}

func TestCacheBackendFailureFallsThrough(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	c := NewCache(store, time.Minute, nil)

	got, hit, err := c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(),
		func(context.Context) (*Ranking, error) { return sampleRanking, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, sampleRanking, got)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	store := newMemoryStore()
	c := NewCache(store, time.Minute, nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), ByIdentifier("BM.11"), DefaultOptions(),
		func(context.Context) (*Ranking, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.data)
}

func TestBuildKey(t *testing.T) {
	base := DefaultOptions()
	base.Exclude = []string{"X.2", "X.1"}
	reordered := DefaultOptions()
	reordered.Exclude = []string{"X.1", "X.2", "X.1"}
	assert.Equal(t, BuildKey(ByIdentifier("BM.11"), base, 0), BuildKey(ByIdentifier("BM.11"), reordered, 0))

	textline := base
	textline.Weights = linetovec.TextLineWeights
	assert.NotEqual(t, BuildKey(ByIdentifier("BM.11"), base, 0), BuildKey(ByIdentifier("BM.11"), textline, 0))

	limited := base
	limited.Limit = 3
	assert.NotEqual(t, BuildKey(ByIdentifier("BM.11"), base, 0), BuildKey(ByIdentifier("BM.11"), limited, 0))

	assert.NotEqual(t,
		BuildKey(ByIdentifier("BM.11"), base, 0),
		BuildKey(BySequence(linetovec.MustFromInts(1, 2, 1)), base, 0))
	assert.True(t, strings.HasPrefix(BuildKey(ByIdentifier("BM.11"), base, 0), keyPrefix))
	assert.NotEqual(t, BuildKey(ByIdentifier("BM.11"), base, 0), BuildKey(ByIdentifier("BM.11"), base, 1))
}
