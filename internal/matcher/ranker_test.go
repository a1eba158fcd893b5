package matcher

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankerKeepsBestScorePerFragment(t *testing.T) {
	r := NewRanker()
	r.Insert("X.1", 2, 5)
	r.Insert("X.1", 4, 3)
	r.Insert("X.1", 1, 9)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []ScoredFragment{{ID: "X.1", Score: 4}}, r.Top(Unweighted, 0))
	assert.Equal(t, []ScoredFragment{{ID: "X.1", Score: 9}}, r.Top(Weighted, 0))
}

func TestRankerSortsDescending(t *testing.T) {
	r := NewRanker()
	r.Insert("X.1", 4, 0)
	r.Insert("X.2", 12, 0)
	r.Insert("X.3", 2, 0)

	assert.Equal(t, []ScoredFragment{
		{ID: "X.2", Score: 12},
		{ID: "X.1", Score: 4},
		{ID: "X.3", Score: 2},
	}, r.Top(Unweighted, DefaultLimit))
}

func TestRankerTiesFollowInsertionOrder(t *testing.T) {
	r := NewRanker()
	for _, id := range []string{"C", "A", "B", "D"} {
		r.Insert(id, 1, 0)
	}
	r.Insert("D", 2, 0)

	ids := func(rows []ScoredFragment) []string {
		out := make([]string, len(rows))
		for i, row := range rows {
			out[i] = row.ID
		}
		return out
	}
	assert.Equal(t, []string{"D", "C", "A", "B"}, ids(r.Top(Unweighted, 0)))
	assert.Equal(t, []string{"D", "C"}, ids(r.Top(Unweighted, 2)))
	assert.Equal(t, []string{"C", "A", "B", "D"}, ids(r.Top(Weighted, 0)))
}

func TestRankerZeroScoresAreKept(t *testing.T) {
	r := NewRanker()
	r.Insert("X.1", 0, 0)
	assert.Equal(t, []ScoredFragment{{ID: "X.1", Score: 0}}, r.Top(Unweighted, DefaultLimit))
}

func TestRankerTruncatesToLimit(t *testing.T) {
	r := NewRanker()
	for i := 0; i < 20; i++ {
		r.Insert(fmt.Sprintf("X.%d", i), i, 20-i)
	}
	ranking := r.Ranking(DefaultLimit)
	require.Len(t, ranking.Score, 15)
	require.Len(t, ranking.ScoreWeighted, 15)
	assert.Equal(t, ScoredFragment{ID: "X.19", Score: 19}, ranking.Score[0])
	assert.Equal(t, ScoredFragment{ID: "X.5", Score: 5}, ranking.Score[14])
	assert.Equal(t, ScoredFragment{ID: "X.0", Score: 20}, ranking.ScoreWeighted[0])
}

func TestRankerEmpty(t *testing.T) {
	ranking := NewRanker().Ranking(DefaultLimit)
	assert.NotNil(t, ranking.Score)
	assert.Empty(t, ranking.Score)
	assert.Empty(t, ranking.ScoreWeighted)
}

func TestRankerHeapMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for round := 0; round < 50; round++ {
		r := NewRanker()
		n := 1 + rng.IntN(60)
		for i := 0; i < n; i++ {
			r.Insert(fmt.Sprintf("F.%d", rng.IntN(40)), rng.IntN(6), rng.IntN(30))
		}
		full := r.Top(Weighted, 0)
		for _, limit := range []int{1, 3, 15, 100} {
			want := full
			if limit < len(full) {
				want = full[:limit]
			}
			assert.Equal(t, want, r.Top(Weighted, limit), "round %d limit %d", round, limit)
		}
	}
}
