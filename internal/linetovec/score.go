package linetovec

// Weights assigns a non-negative weight to each symbol for the weighted
// score.
type Weights [NumEncodings]int

var (
	// DefaultWeights is the table the ranking uses unless told otherwise.
	// Text lines carry no weight, so only structural markers count.
	DefaultWeights = Weights{
		Start:        3,
		TextLine:     0,
		SingleRuling: 3,
		DoubleRuling: 6,
		TripleRuling: 10,
		End:          3,
	}

	// TextLineWeights is DefaultWeights with every text line counting 1.
	TextLineWeights = Weights{
		Start:        3,
		TextLine:     1,
		SingleRuling: 3,
		DoubleRuling: 6,
		TripleRuling: 10,
		End:          3,
	}
)

// WeightsByName resolves the configured table names "default" and
// "textline".
func WeightsByName(name string) (Weights, bool) {
	switch name {
	case "", "default":
		return DefaultWeights, true
	case "textline":
		return TextLineWeights, true
	default:
		return Weights{}, false
	}
}

// Scale multiplies every weight by k.
func (w Weights) Scale(k int) Weights {
	var out Weights
	for i, v := range w {
		out[i] = v * k
	}
	return out
}

// Sum is the total weight of seq.
func (w Weights) Sum(seq Sequence) int {
	total := 0
	for _, e := range seq {
		total += w[e]
	}
	return total
}

// Score is the length of the longest overlap between a and b.
func Score(a, b Sequence) int {
	best := 0
	eachOverlap(a, b, func(overlap Sequence) {
		best = max(best, len(overlap))
	})
	return best
}

// ScoreWeighted is the largest total weight of any overlap between a and b.
func ScoreWeighted(a, b Sequence, w Weights) int {
	best := 0
	eachOverlap(a, b, func(overlap Sequence) {
		best = max(best, w.Sum(overlap))
	})
	return best
}

// Scores computes Score and ScoreWeighted in a single pass.
func Scores(a, b Sequence, w Weights) (score, weighted int) {
	eachOverlap(a, b, func(overlap Sequence) {
		score = max(score, len(overlap))
		weighted = max(weighted, w.Sum(overlap))
	})
	return score, weighted
}

// ScoreSets is the best Score over every pair drawn from as and bs.
func ScoreSets(as, bs []Sequence) int {
	best := 0
	for _, a := range as {
		for _, b := range bs {
			best = max(best, Score(a, b))
		}
	}
	return best
}

// ScoreWeightedSets is the best ScoreWeighted over every pair drawn from as
// and bs.
func ScoreWeightedSets(as, bs []Sequence, w Weights) int {
	best := 0
	for _, a := range as {
		for _, b := range bs {
			best = max(best, ScoreWeighted(a, b, w))
		}
	}
	return best
}

// eachOverlap calls visit with every accepted overlap, as a subslice of the
// shorter sequence (a when lengths are equal). Accepted overlaps are
//
//   - the whole shorter sequence when it occurs anywhere in the longer one,
//   - a suffix of the shorter equal to the prefix of the longer of the same
//     length,
//   - a prefix of the shorter equal to the suffix of the longer of the same
//     length (the same rule read in reverse).
//
// Runs that match only in the interior of both sequences are not overlaps.
func eachOverlap(a, b Sequence, visit func(Sequence)) {
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}
	ls, ll := len(shorter), len(longer)
	if ll == 0 {
		return
	}
	if contains(longer, shorter) {
		visit(shorter)
	}
	for k := 1; k <= ls; k++ {
		if equal(shorter[ls-k:], longer[:k]) {
			visit(shorter[ls-k:])
		}
		if equal(shorter[:k], longer[ll-k:]) {
			visit(shorter[:k])
		}
	}
}

func contains(haystack, needle Sequence) bool {
	for start := 0; start+len(needle) <= len(haystack); start++ {
		if equal(haystack[start:start+len(needle)], needle) {
			return true
		}
	}
	return false
}

func equal(a, b Sequence) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
