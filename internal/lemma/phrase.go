// Package lemma filters corpus search hits by lemma queries: any/all lemma
// membership per line, and exact phrases over ambiguously lemmatized tokens.
package lemma

import (
	"iter"
	"slices"
)

// Slot holds the candidate lemmas of one token. An empty slot has the
// single reading "".
type Slot []string

// Line is an ordered sequence of token slots.
type Line []Slot

// Phrase is the exact token sequence to look for. An empty string requires a
// token without lemmatization at that position.
type Phrase []string

// Contains reports whether lemma is one of the slot's readings.
func (s Slot) Contains(lemma string) bool {
	if len(s) == 0 {
		return lemma == ""
	}
	return slices.Contains(s, lemma)
}

func (s Slot) readings() int {
	return max(len(s), 1)
}

func (s Slot) reading(i int) string {
	if len(s) == 0 {
		return ""
	}
	return s[i]
}

// Matches reports whether some contiguous window of line can be read as
// phrase, choosing one candidate lemma per slot. An empty phrase matches
// nothing.
func Matches(line Line, phrase Phrase) bool {
	n := len(phrase)
	if n == 0 || n > len(line) {
		return false
	}
	start := slices.IndexFunc(line, func(s Slot) bool { return s.Contains(phrase[0]) })
	if start < 0 {
		return false
	}
	for i := start; i+n <= len(line); i++ {
		if windowMatches(line[i:i+n], phrase) {
			return true
		}
	}
	return false
}

// windowMatches tests per-slot membership, which is the same as asking
// whether phrase is one of Readings(window) without enumerating them.
func windowMatches(window Line, phrase Phrase) bool {
	for i, slot := range window {
		if !slot.Contains(phrase[i]) {
			return false
		}
	}
	return true
}

// Readings lazily enumerates every reading of window: the Cartesian product
// of its slots, leftmost slot varying slowest. Each yielded slice is fresh.
func Readings(window Line) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		idx := make([]int, len(window))
		for {
			reading := make([]string, len(window))
			for i, slot := range window {
				reading[i] = slot.reading(idx[i])
			}
			if !yield(reading) {
				return
			}

			i := len(window) - 1
			for ; i >= 0; i-- {
				idx[i]++
				if idx[i] < window[i].readings() {
					break
				}
				idx[i] = 0
			}
			if i < 0 {
				return
			}
		}
	}
}

// Vocabulary returns the distinct lemmas of all lines in first-seen order.
func Vocabulary(lines []Line) []string {
	seen := make(map[string]struct{})
	var vocab []string
	for _, line := range lines {
		for _, slot := range line {
			for _, lemma := range slot {
				if _, ok := seen[lemma]; ok {
					continue
				}
				seen[lemma] = struct{}{}
				vocab = append(vocab, lemma)
			}
		}
	}
	return vocab
}
