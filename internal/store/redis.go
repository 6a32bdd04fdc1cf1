package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/curio/marketplace-engine/internal/event"
)

// CachedJournal wraps a primary Journal (PostgreSQL) with a Redis
// read-through cache for the hot feeds. Appends go to the primary and
// invalidate the affected keys; reads check Redis first then fall back
// to the primary.
type CachedJournal struct {
	primary Journal
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedJournal creates a cached wrapper around a primary journal.
func NewCachedJournal(primary Journal, rdb *redis.Client, ttl time.Duration) *CachedJournal {
	return &CachedJournal{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (j *CachedJournal) Append(ctx context.Context, ev *event.Event) error {
	if err := j.primary.Append(ctx, ev); err != nil {
		return err
	}
	// Invalidate the feeds this event lands in; the next read
	// re-populates them.
	keys := []string{recentKey(), itemKey(ev.Registry, ev.ItemID)}
	if ev.Actor != "" {
		keys = append(keys, accountKey(ev.Actor))
	}
	if ev.Counterparty != "" {
		keys = append(keys, accountKey(ev.Counterparty))
	}
	j.rdb.Del(ctx, keys...)
	return nil
}

func (j *CachedJournal) Recent(ctx context.Context, limit int) ([]event.Event, error) {
	return j.readThrough(ctx, recentKey(), limit, func() ([]event.Event, error) {
		return j.primary.Recent(ctx, limit)
	})
}

func (j *CachedJournal) ByItem(ctx context.Context, registry string, itemID uint64, limit int) ([]event.Event, error) {
	return j.readThrough(ctx, itemKey(registry, itemID), limit, func() ([]event.Event, error) {
		return j.primary.ByItem(ctx, registry, itemID, limit)
	})
}

func (j *CachedJournal) ByAccount(ctx context.Context, account string, limit int) ([]event.Event, error) {
	return j.readThrough(ctx, accountKey(account), limit, func() ([]event.Event, error) {
		return j.primary.ByAccount(ctx, account, limit)
	})
}

// readThrough serves a feed from Redis when the cached copy is big
// enough, otherwise loads from the primary and caches the result.
func (j *CachedJournal) readThrough(ctx context.Context, key string, limit int, load func() ([]event.Event, error)) ([]event.Event, error) {
	data, err := j.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var events []event.Event
		if json.Unmarshal(data, &events) == nil && len(events) >= limit {
			return events[:limit], nil
		}
	}

	events, err := load()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		j.rdb.Set(ctx, key, data, j.ttl)
	}
	return events, nil
}

func recentKey() string { return "feed:recent" }

func itemKey(registry string, itemID uint64) string {
	return fmt.Sprintf("feed:item:%s:%d", registry, itemID)
}

func accountKey(account string) string { return fmt.Sprintf("feed:account:%s", account) }
