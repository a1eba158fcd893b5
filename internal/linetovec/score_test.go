package linetovec

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seqs(codes ...[]int) []Sequence {
	out := make([]Sequence, len(codes))
	for i, c := range codes {
		out[i] = MustFromInts(c...)
	}
	return out
}

func ints(codes ...int) []int { return codes }

func TestScoreSets(t *testing.T) {
	tests := []struct {
		name       string
		a, b       []Sequence
		unweighted int
		weighted   int
	}{
		{"identical", seqs(ints(1, 2, 1)), seqs(ints(1, 2, 1)), 3, 5},
		{"empty other", seqs(ints(1, 2, 1)), seqs(ints()), 0, 0},
		{"suffix meets prefix", seqs(ints(1, 2, 1)), seqs(ints(2, 1, 2)), 2, 4},
		{"single tail", seqs(ints(1, 2, 1)), seqs(ints(2, 2, 1)), 1, 1},
		{"single head", seqs(ints(1, 2, 1)), seqs(ints(1, 2, 2)), 1, 1},
		{"no overlap", seqs(ints(1, 2, 1)), seqs(ints(2, 2, 2)), 0, 0},
		{"second encoding matches", seqs(ints(1, 2, 1)), seqs(ints(2, 2, 2), ints(1, 2, 1)), 3, 5},
		{"first encoding matches", seqs(ints(1, 2, 1)), seqs(ints(1, 2, 1), ints(2, 2, 2)), 3, 5},
		{"candidate second encoding", seqs(ints(2, 2, 2), ints(1, 2, 1)), seqs(ints(1, 2, 1)), 3, 5},
		{"candidate first encoding", seqs(ints(1, 2, 1), ints(2, 2, 2)), seqs(ints(1, 2, 1)), 3, 5},
		{"contained", seqs(ints(1, 1, 2, 1, 1)), seqs(ints(1, 2, 1)), 3, 5},
		{"reversed single", seqs(ints(0, 1, 2, 1, 1)), seqs(ints(1, 2, 5)), 1, 1},
		{"many to many", seqs(ints(0, 1, 2, 1), ints(1, 2, 1, 5)), seqs(ints(2, 3, 2), ints(1, 1, 2, 1)), 3, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unweighted, ScoreSets(tt.a, tt.b))
			assert.Equal(t, tt.weighted, ScoreWeightedSets(tt.a, tt.b, TextLineWeights))
		})
	}
}

func TestScoreDefaultWeights(t *testing.T) {
	tests := []struct {
		name       string
		a, b       Sequence
		unweighted int
		weighted   int
	}{
		{"identical", MustFromInts(1, 2, 1), MustFromInts(1, 2, 1), 3, 3},
		{"contained with end", MustFromInts(1, 2, 1, 1, 5), MustFromInts(0, 1, 2, 1, 1, 5), 5, 6},
		{"text line only", MustFromInts(1, 1, 2, 5), MustFromInts(1, 1, 2, 1), 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unweighted, Score(tt.a, tt.b))
			assert.Equal(t, tt.weighted, ScoreWeighted(tt.a, tt.b, DefaultWeights))

			score, weighted := Scores(tt.a, tt.b, DefaultWeights)
			assert.Equal(t, tt.unweighted, score)
			assert.Equal(t, tt.weighted, weighted)
		})
	}
}

func TestScoreInteriorRunIsNotAnOverlap(t *testing.T) {
	a := MustFromInts(0, 2, 3, 3, 2, 5)
	b := MustFromInts(1, 4, 3, 3, 4, 1)
	assert.Equal(t, 0, Score(a, b))
}

func TestMatchingSubsequenceItself(t *testing.T) {
	a := seqs(ints(1, 1, 1, 1, 1, 1, 1, 2), ints(0, 1, 1, 1, 1, 1, 1, 1))
	b := seqs(ints(1, 1, 1, 1, 1), ints(0, 1, 1, 1, 1, 1, 1, 1, 1, 1))
	assert.GreaterOrEqual(t, ScoreSets(a, a), ScoreSets(a, b))
}

func randomSequence(r *rand.Rand, maxLen int) Sequence {
	seq := make(Sequence, 1+r.IntN(maxLen))
	for i := range seq {
		seq[i] = Encoding(r.IntN(NumEncodings))
	}
	return seq
}

func TestScoreProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 500; i++ {
		a := randomSequence(r, 12)
		b := randomSequence(r, 12)

		assert.Equal(t, len(a), Score(a, a), "self overlap of %v", a)
		assert.Equal(t, Score(a, b), Score(b, a), "symmetry of %v and %v", a, b)
		assert.Equal(t, ScoreWeighted(a, b, DefaultWeights), ScoreWeighted(b, a, DefaultWeights))

		k := 1 + r.IntN(5)
		assert.Equal(t, k*ScoreWeighted(a, b, TextLineWeights), ScoreWeighted(a, b, TextLineWeights.Scale(k)))
	}
}

func TestScoreAsymmetricLengths(t *testing.T) {
	short := MustFromInts(2, 1, 5)
	long := MustFromInts(0, 1, 1, 2, 1, 5)
	assert.Equal(t, 3, Score(short, long))
	assert.Equal(t, Score(short, long), Score(long, short))
	assert.Equal(t, 6, ScoreWeighted(short, long, DefaultWeights))
}

func TestWeightsByName(t *testing.T) {
	w, ok := WeightsByName("")
	assert.True(t, ok)
	assert.Equal(t, DefaultWeights, w)

	w, ok = WeightsByName("textline")
	assert.True(t, ok)
	assert.Equal(t, 1, w[TextLine])

	_, ok = WeightsByName("heavy")
	assert.False(t, ok)
}
