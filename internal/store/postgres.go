package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/event"
)

// PostgresJournal implements Journal using PostgreSQL as the source of
// truth. Monetary values are stored as NUMERIC for exact decimal
// precision.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal creates a new PostgreSQL-backed journal.
func NewPostgresJournal(pool *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

const journalColumns = `id, type, registry, item_id, actor, counterparty,
		        auction_id, offer_id, amount::TEXT, quantity,
		        fee_primary_per_mille, fee_secondary_per_mille, at`

func (j *PostgresJournal) Append(ctx context.Context, ev *event.Event) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO journal_events (id, type, registry, item_id, actor, counterparty,
		                             auction_id, offer_id, amount, quantity,
		                             fee_primary_per_mille, fee_secondary_per_mille, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10, $11, $12, $13)`,
		ev.ID, string(ev.Type), ev.Registry, ev.ItemID, ev.Actor, ev.Counterparty,
		ev.AuctionID, ev.OfferID, ev.Amount.String(), ev.Quantity,
		ev.FeePrimaryPerMille, ev.FeeSecondaryPerMille, ev.At,
	)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]event.Event, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT `+journalColumns+`
		 FROM journal_events ORDER BY at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (j *PostgresJournal) ByItem(ctx context.Context, registry string, itemID uint64, limit int) ([]event.Event, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT `+journalColumns+`
		 FROM journal_events
		 WHERE registry = $1 AND item_id = $2
		 ORDER BY at DESC, id DESC LIMIT $3`, registry, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (j *PostgresJournal) ByAccount(ctx context.Context, account string, limit int) ([]event.Event, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT `+journalColumns+`
		 FROM journal_events
		 WHERE actor = $1 OR counterparty = $1
		 ORDER BY at DESC, id DESC LIMIT $2`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents reads pgx rows into Event slices.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanEvents(rows pgxRows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var ev event.Event
		var typ, amountS string

		if err := rows.Scan(&ev.ID, &typ, &ev.Registry, &ev.ItemID, &ev.Actor, &ev.Counterparty,
			&ev.AuctionID, &ev.OfferID, &amountS, &ev.Quantity,
			&ev.FeePrimaryPerMille, &ev.FeeSecondaryPerMille, &ev.At); err != nil {
			return nil, err
		}

		ev.Type = event.Type(typ)
		ev.Amount, _ = decimal.NewFromString(amountS)

		events = append(events, ev)
	}
	return events, rows.Err()
}
