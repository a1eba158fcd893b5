package corpus

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/internal/linetovec"
	"github.com/Adithya-Monish-Kumar-K/Fragment-Matching-Platform/pkg/kafka"
)

// UpdateEvent is the fragment-updates message: the new encodings of a
// fragment, or its removal.
type UpdateEvent struct {
	ID        string               `json:"museumNumber"`
	Encodings []linetovec.Sequence `json:"encodings"`
	Deleted   bool                 `json:"deleted,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Applier applies update events to an Index and then notifies listeners,
// such as the ranking cache.
type Applier struct {
	index     *Index
	listeners []func(ctx context.Context, ev UpdateEvent)
	logger    *slog.Logger
}

func NewApplier(index *Index, listeners ...func(ctx context.Context, ev UpdateEvent)) *Applier {
	return &Applier{
		index:     index,
		listeners: listeners,
		logger:    slog.Default().With("component", "corpus-applier"),
	}
}

// Apply updates the index with ev.
func (a *Applier) Apply(ctx context.Context, ev UpdateEvent) {
	if ev.Deleted {
		if !a.index.Remove(ev.ID) {
			a.logger.Debug("delete for unknown fragment", "id", ev.ID)
		}
	} else {
		a.index.Upsert(Entry{ID: ev.ID, Encodings: ev.Encodings})
	}
	for _, notify := range a.listeners {
		notify(ctx, ev)
	}
	a.logger.Info("corpus updated",
		"id", ev.ID,
		"deleted", ev.Deleted,
		"encodings", len(ev.Encodings),
	)
}

// HandleMessage returns a Kafka MessageHandler applying fragment-updates
// events. Undecodable messages are logged and skipped.
func (a *Applier) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[UpdateEvent](value)
		if err != nil {
			a.logger.Error("failed to decode update event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if ev.ID == "" {
			a.logger.Warn("update event without fragment id", "key", string(key))
			return nil
		}
		a.Apply(ctx, ev)
		return nil
	}
}
