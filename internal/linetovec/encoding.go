// Package linetovec encodes the physical line layout of a fragment as a
// sequence of structural symbols and scores how far two such sequences
// continue into each other.
package linetovec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
)

// Encoding is one structural line-type symbol. The integer values are the
// stored and wire representation.
type Encoding uint8

const (
	Start Encoding = iota
	TextLine
	SingleRuling
	DoubleRuling
	TripleRuling
	End
)

// NumEncodings is the size of the closed symbol set.
const NumEncodings = int(End) + 1

func (e Encoding) String() string {
	switch e {
	case Start:
		return "START"
	case TextLine:
		return "TEXT_LINE"
	case SingleRuling:
		return "SINGLE_RULING"
	case DoubleRuling:
		return "DOUBLE_RULING"
	case TripleRuling:
		return "TRIPLE_RULING"
	case End:
		return "END"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// Valid reports whether e belongs to the symbol set.
func (e Encoding) Valid() bool {
	return int(e) < NumEncodings
}

// Sequence is one reading-order pass over a fragment's lines.
type Sequence []Encoding

// Ints returns the integer codes of s.
func (s Sequence) Ints() []int {
	out := make([]int, len(s))
	for i, e := range s {
		out[i] = int(e)
	}
	return out
}

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = strconv.Itoa(int(e))
	}
	return strings.Join(parts, ",")
}

// MarshalJSON writes s as an array of integer codes.
func (s Sequence) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Ints())
}

// UnmarshalJSON reads an array of integer codes, rejecting unknown ones.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	var codes []int
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}
	seq, err := FromInts(codes)
	if err != nil {
		return err
	}
	*s = seq
	return nil
}

// FromInts maps integer codes to a Sequence.
func FromInts(codes []int) (Sequence, error) {
	seq := make(Sequence, len(codes))
	for i, code := range codes {
		if code < 0 || code >= NumEncodings {
			return nil, fmt.Errorf("%w: code %d at position %d is not a line encoding",
				apperrors.ErrInvalidCandidate, code, i)
		}
		seq[i] = Encoding(code)
	}
	return seq, nil
}

// MustFromInts is FromInts for literals known to be valid.
func MustFromInts(codes ...int) Sequence {
	seq, err := FromInts(codes)
	if err != nil {
		panic(err)
	}
	return seq
}

// ParseSequences parses a raw candidate literal such as "1,2,1;0,1,1".
// Sequences are separated by ';' and codes by ','. Whitespace is ignored.
func ParseSequences(raw string) ([]Sequence, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty sequence literal", apperrors.ErrInvalidCandidate)
	}
	var seqs []Sequence
	for _, part := range strings.Split(raw, ";") {
		fields := strings.Split(part, ",")
		codes := make([]int, 0, len(fields))
		for _, field := range fields {
			field = strings.TrimSpace(field)
			if field == "" {
				return nil, fmt.Errorf("%w: empty code in %q", apperrors.ErrInvalidCandidate, part)
			}
			code, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an integer", apperrors.ErrInvalidCandidate, field)
			}
			codes = append(codes, code)
		}
		seq, err := FromInts(codes)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}
