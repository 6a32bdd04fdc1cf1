// Package store persists the marketplace event journal. Implementations
// include PostgreSQL (source of truth), Redis (read-through cache), and
// in-memory (for testing).
package store

import (
	"context"

	"github.com/curio/marketplace-engine/internal/event"
)

// Journal is the persistence interface for the immutable trade feed.
// PostgreSQL is the source of truth; Redis provides a read-through cache
// layer for the hot feeds.
type Journal interface {
	// Append persists one event. Events are immutable once written.
	Append(ctx context.Context, ev *event.Event) error

	// Recent returns the newest events across the whole marketplace,
	// newest first.
	Recent(ctx context.Context, limit int) ([]event.Event, error)

	// ByItem returns the newest events touching one item, newest first.
	ByItem(ctx context.Context, registry string, itemID uint64, limit int) ([]event.Event, error)

	// ByAccount returns the newest events where the account acted or was
	// the counterparty, newest first.
	ByAccount(ctx context.Context, account string, limit int) ([]event.Event, error)
}
