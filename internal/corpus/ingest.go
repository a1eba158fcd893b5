package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	apperrors "github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/kafka"
)

const (
	maxIDLength = 128
	maxLines    = 10000
	// maxExpansions caps the encodings one fragment may expand to.
	maxExpansions = 4096
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

// ValidateFragment checks a fragment before it is stored.
func ValidateFragment(f Fragment) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(f.ID)
	switch {
	case id == "":
		errs["museumNumber"] = "museum number is required"
	case len(id) > maxIDLength:
		errs["museumNumber"] = fmt.Sprintf("museum number must be at most %d characters", maxIDLength)
	}
	if len(f.Lines) > maxLines {
		errs["lines"] = fmt.Sprintf("at most %d lines are allowed", maxLines)
	}

	expansions := 1
	for i, line := range f.Lines {
		switch line.Kind {
		case linetovec.KindText:
		case linetovec.KindRuling:
			if len(line.Rulings) == 0 {
				errs[fmt.Sprintf("lines[%d]", i)] = "ruling line needs at least one ruling"
				continue
			}
			for _, r := range line.Rulings {
				if r < linetovec.RulingSingle || r > linetovec.RulingTriple {
					errs[fmt.Sprintf("lines[%d]", i)] = fmt.Sprintf("unknown ruling %d", r)
				}
			}
			if expansions <= maxExpansions {
				expansions *= len(line.Rulings)
			}
		default:
			errs[fmt.Sprintf("lines[%d]", i)] = fmt.Sprintf("unknown line kind %d", line.Kind)
		}
	}
	if expansions > maxExpansions {
		errs["lines"] = fmt.Sprintf("ambiguous rulings expand to more than %d encodings", maxExpansions)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// Store persists fragments. *Repository implements it.
type Store interface {
	UpsertFragment(ctx context.Context, f Fragment) (Entry, error)
	DeleteFragment(ctx context.Context, id string) error
}

// Publisher sends update events. *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Ingester stores fragment changes and propagates them to every matcher
// through the fragment-updates topic. Without a publisher, or when
// publishing fails, the change is applied to the local index directly.
type Ingester struct {
	store     Store
	publisher Publisher
	applier   *Applier
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngester builds an Ingester. publisher may be nil.
func NewIngester(store Store, publisher Publisher, applier *Applier) *Ingester {
	return &Ingester{
		store:     store,
		publisher: publisher,
		applier:   applier,
		logger:    slog.Default().With("component", "corpus-ingester"),
		now:       time.Now,
	}
}

// Put validates, encodes and stores f, returning its new entry.
func (i *Ingester) Put(ctx context.Context, f Fragment) (Entry, error) {
	f.ID = strings.TrimSpace(f.ID)
	if err := ValidateFragment(f); err != nil {
		return Entry{}, err
	}
	entry, err := i.store.UpsertFragment(ctx, f)
	if err != nil {
		return Entry{}, err
	}
	i.propagate(ctx, UpdateEvent{ID: entry.ID, Encodings: entry.Encodings, UpdatedAt: i.now().UTC()})
	return entry, nil
}

// Delete removes the fragment id.
func (i *Ingester) Delete(ctx context.Context, id string) error {
	if err := i.store.DeleteFragment(ctx, id); err != nil {
		return err
	}
	i.propagate(ctx, UpdateEvent{ID: id, Deleted: true, UpdatedAt: i.now().UTC()})
	return nil
}

func (i *Ingester) propagate(ctx context.Context, ev UpdateEvent) {
	if i.publisher != nil {
		err := i.publisher.Publish(ctx, kafka.Event{Key: ev.ID, Value: ev})
		if err == nil {
			return
		}
		i.logger.Error("failed to publish fragment update, applying locally",
			"id", ev.ID,
			"error", err,
		)
	}
	i.applier.Apply(ctx, ev)
}
