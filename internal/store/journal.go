package store

import (
	"context"
	"log/slog"

	"github.com/atmx/option-vault/internal/model"
)

// Journal is an EventSink that appends committed events to a Store.
// Events are already final when published, so write failures are logged
// rather than returned, and cancellation of the publishing request does
// not abort the write.
type Journal struct {
	store  Store
	logger *slog.Logger
}

// NewJournal creates a journal sink over s.
func NewJournal(s Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, logger: logger.With("component", "journal")}
}

func (j *Journal) Publish(ctx context.Context, events ...model.Event) {
	ctx = context.WithoutCancel(ctx)
	for i := range events {
		if err := j.store.InsertEvent(ctx, &events[i]); err != nil {
			j.logger.Error("failed to persist event",
				"event_id", events[i].ID,
				"kind", events[i].Kind,
				"error", err,
			)
		}
	}
}
