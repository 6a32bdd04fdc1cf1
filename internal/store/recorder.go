package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/curio/marketplace-engine/internal/event"
)

// Recorder adapts a Journal to the event.Sink interface. Appends run
// with a short timeout and failures are logged, never surfaced: the
// journal is an observer of trades, not a participant.
type Recorder struct {
	journal Journal
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder creates a sink that appends published events to journal.
func NewRecorder(journal Journal, logger *slog.Logger) *Recorder {
	return &Recorder{
		journal: journal,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (r *Recorder) Publish(ev event.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.journal.Append(ctx, &ev); err != nil {
		r.logger.Error("failed to journal event",
			"event_id", ev.ID,
			"type", ev.Type,
			"error", err)
	}
}
