package lemma

import (
	"net/http"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
)

// QueryType selects how query lemmas are matched against lines.
type QueryType string

const (
	// QueryAnd keeps hits whose vocabulary holds every lemma, and within them
	// the lines holding any of them.
	QueryAnd QueryType = "AND"
	// QueryOr keeps lines holding any lemma.
	QueryOr QueryType = "OR"
	// QueryLine keeps lines holding every lemma.
	QueryLine QueryType = "LINE"
	// QueryPhrase keeps lines containing the lemmas as a contiguous phrase.
	QueryPhrase QueryType = "PHRASE"
)

// ParseQueryType accepts the type names case-insensitively.
func ParseQueryType(s string) (QueryType, error) {
	switch t := QueryType(strings.ToUpper(strings.TrimSpace(s))); t {
	case QueryAnd, QueryOr, QueryLine, QueryPhrase:
		return t, nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"unknown lemma query type %q", s)
	}
}

// Query is one lemma search.
type Query struct {
	Type   QueryType
	Lemmas []string
}

// Validate rejects queries that cannot match anything meaningful.
func (q Query) Validate() error {
	_, err := q.normalize()
	return err
}

// normalize validates q and returns it with its type in canonical case.
func (q Query) normalize() (Query, error) {
	t, err := ParseQueryType(string(q.Type))
	if err != nil {
		return Query{}, err
	}
	if len(q.Lemmas) == 0 {
		return Query{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "at least one lemma is required")
	}
	q.Type = t
	return q, nil
}

// matchesHit is the hit-level filter applied before looking at lines.
func (q Query) matchesHit(lines []Line) bool {
	if q.Type != QueryAnd {
		return true
	}
	vocab := Vocabulary(lines)
	for _, lemma := range q.Lemmas {
		if !slices.Contains(vocab, lemma) {
			return false
		}
	}
	return true
}

func (q Query) matchesLine(line Line) bool {
	switch q.Type {
	case QueryAnd, QueryOr:
		return slices.ContainsFunc(q.Lemmas, func(lemma string) bool { return hasLemma(line, lemma) })
	case QueryLine:
		for _, lemma := range q.Lemmas {
			if !hasLemma(line, lemma) {
				return false
			}
		}
		return true
	case QueryPhrase:
		return Matches(line, Phrase(q.Lemmas))
	}
	return false
}

// hasLemma looks at explicit candidates only, so empty slots never match.
func hasLemma(line Line, lemma string) bool {
	for _, slot := range line {
		if slices.Contains(slot, lemma) {
			return true
		}
	}
	return false
}
