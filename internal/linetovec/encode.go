package linetovec

// Kind tags a raw line record.
type Kind uint8

const (
	KindText Kind = iota
	KindRuling
)

// Ruling is the number of strokes of a ruling line.
type Ruling uint8

const (
	RulingSingle Ruling = iota + 1
	RulingDouble
	RulingTriple
)

func (r Ruling) encoding() (Encoding, bool) {
	switch r {
	case RulingSingle:
		return SingleRuling, true
	case RulingDouble:
		return DoubleRuling, true
	case RulingTriple:
		return TripleRuling, true
	default:
		return 0, false
	}
}

// Line is one raw line record of a fragment. Text lines carry their line
// number; ruling lines carry every ruling count the line admits, more than
// one when the reading is ambiguous.
type Line struct {
	Kind    Kind     `json:"kind"`
	Number  int      `json:"number,omitempty"`
	Rulings []Ruling `json:"rulings,omitempty"`
}

// Text returns a text line record.
func Text(number int) Line {
	return Line{Kind: KindText, Number: number}
}

// Rule returns a ruling line record admitting each of rulings.
func Rule(rulings ...Ruling) Line {
	return Line{Kind: KindRuling, Rulings: rulings}
}

// Encode converts a fragment's line records to its encodings.
//
// A text line numbered no higher than the preceding text line opens a new
// split, and each split is encoded on its own. Every split yields one
// sequence per combination of ambiguous ruling readings, framed by Start and
// End. Records that encode to nothing are skipped, and a fragment with no
// encodable records yields no sequences.
func Encode(lines []Line) []Sequence {
	var result []Sequence
	for _, split := range splitLines(lines) {
		slots := encodeSlots(split)
		if len(slots) == 0 {
			continue
		}
		result = append(result, expand(slots)...)
	}
	return result
}

func splitLines(lines []Line) [][]Line {
	splits := [][]Line{{}}
	lastNumber := -1
	for _, line := range lines {
		if line.Kind == KindText {
			if lastNumber >= line.Number {
				splits = append(splits, []Line{})
			}
			lastNumber = line.Number
		}
		current := len(splits) - 1
		splits[current] = append(splits[current], line)
	}
	return splits
}

// encodeSlots returns, per encodable record, the symbols it may stand for.
func encodeSlots(lines []Line) [][]Encoding {
	slots := make([][]Encoding, 0, len(lines))
	for _, line := range lines {
		switch line.Kind {
		case KindText:
			slots = append(slots, []Encoding{TextLine})
		case KindRuling:
			var alternatives []Encoding
			seen := [NumEncodings]bool{}
			for _, r := range line.Rulings {
				enc, ok := r.encoding()
				if !ok || seen[enc] {
					continue
				}
				seen[enc] = true
				alternatives = append(alternatives, enc)
			}
			if len(alternatives) > 0 {
				slots = append(slots, alternatives)
			}
		}
	}
	return slots
}

// expand enumerates the Cartesian product of slots in lexicographic order,
// the first slot varying slowest.
func expand(slots [][]Encoding) []Sequence {
	choice := make([]int, len(slots))
	var result []Sequence
	for {
		seq := make(Sequence, 0, len(slots)+2)
		seq = append(seq, Start)
		for i, slot := range slots {
			seq = append(seq, slot[choice[i]])
		}
		seq = append(seq, End)
		result = append(result, seq)

		i := len(slots) - 1
		for ; i >= 0; i-- {
			choice[i]++
			if choice[i] < len(slots[i]) {
				break
			}
			choice[i] = 0
		}
		if i < 0 {
			return result
		}
	}
}
