// Package corpus owns the fragment encodings the matcher ranks against: the
// PostgreSQL repository they are stored in, the in-memory index served to
// queries, on-disk snapshots of that index, and the Kafka consumer that keeps
// it current.
package corpus

import (
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
)

// Entry is one fragment's identifier and its line-to-vec encodings.
type Entry struct {
	ID        string               `json:"id"`
	Encodings []linetovec.Sequence `json:"encodings"`
}

// EncodingCount sums the encodings across entries.
func EncodingCount(entries []Entry) int {
	n := 0
	for _, e := range entries {
		n += len(e.Encodings)
	}
	return n
}
