package matcher

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
)

// CandidateKind tells how a Candidate is specified.
type CandidateKind int

const (
	KindIdentifier CandidateKind = iota + 1
	KindSequence
)

func (k CandidateKind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Candidate is the fragment being matched: either a corpus identifier whose
// encodings are looked up, or raw encodings supplied by the caller. The zero
// value is not a valid candidate.
type Candidate struct {
	kind      CandidateKind
	id        string
	sequences []linetovec.Sequence
}

// ByIdentifier names a fragment in the corpus. The fragment itself is
// excluded from its own ranking.
func ByIdentifier(id string) Candidate {
	return Candidate{kind: KindIdentifier, id: id}
}

// BySequence supplies encodings directly.
func BySequence(seqs ...linetovec.Sequence) Candidate {
	return Candidate{kind: KindSequence, sequences: seqs}
}

func (c Candidate) Kind() CandidateKind { return c.kind }

// Identifier returns the fragment id for identifier candidates.
func (c Candidate) Identifier() (string, bool) {
	return c.id, c.kind == KindIdentifier
}

// Sequences returns the encodings for sequence candidates.
func (c Candidate) Sequences() ([]linetovec.Sequence, bool) {
	return c.sequences, c.kind == KindSequence
}

// Key is a stable textual form used in cache keys and logs.
func (c Candidate) Key() string {
	switch c.kind {
	case KindIdentifier:
		return "id:" + c.id
	case KindSequence:
		parts := make([]string, len(c.sequences))
		for i, s := range c.sequences {
			parts[i] = s.String()
		}
		return "seq:" + strings.Join(parts, ";")
	default:
		return ""
	}
}

func (c Candidate) String() string {
	return c.Key()
}
