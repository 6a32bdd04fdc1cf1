package store

import (
	"context"
	"sync"

	"github.com/curio/marketplace-engine/internal/event"
)

// MemoryJournal implements Journal with an in-memory slice. Used for
// testing and development. Not suitable for production (no persistence).
type MemoryJournal struct {
	mu     sync.RWMutex
	events []event.Event
}

// NewMemoryJournal creates a new in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(_ context.Context, ev *event.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events = append(j.events, *ev)
	return nil
}

func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]event.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.collect(limit, func(event.Event) bool { return true }), nil
}

func (j *MemoryJournal) ByItem(_ context.Context, registry string, itemID uint64, limit int) ([]event.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.collect(limit, func(ev event.Event) bool {
		return ev.Registry == registry && ev.ItemID == itemID
	}), nil
}

func (j *MemoryJournal) ByAccount(_ context.Context, account string, limit int) ([]event.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.collect(limit, func(ev event.Event) bool {
		return ev.Actor == account || ev.Counterparty == account
	}), nil
}

// collect walks the append-order slice backwards so results come out
// newest first. Callers hold the lock.
func (j *MemoryJournal) collect(limit int, match func(event.Event) bool) []event.Event {
	var result []event.Event
	for i := len(j.events) - 1; i >= 0 && len(result) < limit; i-- {
		if match(j.events[i]) {
			result = append(result, j.events[i])
		}
	}
	return result
}
