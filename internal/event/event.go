// Package event defines the observable marketplace events and the sinks
// that carry them to external indexers (WebSocket clients, the persistent
// journal). Events are advisory: the engine's correctness never depends
// on a sink accepting them.
package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies the kind of marketplace event.
type Type string

const (
	TypeListingCreated Type = "listing_created"
	TypeListingUpdated Type = "listing_updated"
	TypeListingRemoved Type = "listing_removed"
	TypeItemSold       Type = "item_sold"

	TypeAuctionCreated   Type = "auction_created"
	TypeAuctionBid       Type = "auction_bid"
	TypeAuctionExtended  Type = "auction_extended"
	TypeAuctionSettled   Type = "auction_settled"
	TypeAuctionCancelled Type = "auction_cancelled"

	TypeOfferCreated   Type = "offer_created"
	TypeOfferAccepted  Type = "offer_accepted"
	TypeOfferRejected  Type = "offer_rejected"
	TypeOfferCancelled Type = "offer_cancelled"

	TypeFeeConfigChanged Type = "fee_config_changed"
)

// Event is one observable marketplace occurrence. Fields that do not
// apply to a given type are left zero.
type Event struct {
	ID           string          `json:"id"`
	Type         Type            `json:"type"`
	Registry     string          `json:"registry,omitempty"`
	ItemID       uint64          `json:"item_id,omitempty"`
	Actor        string          `json:"actor,omitempty"`        // initiating account
	Counterparty string          `json:"counterparty,omitempty"` // other side of the trade, if any
	AuctionID    uint64          `json:"auction_id,omitempty"`
	OfferID      uint64          `json:"offer_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Quantity     uint64          `json:"quantity,omitempty"`

	// Set only on fee_config_changed.
	FeePrimaryPerMille   int64 `json:"fee_primary_per_mille,omitempty"`
	FeeSecondaryPerMille int64 `json:"fee_secondary_per_mille,omitempty"`

	At time.Time `json:"at"`
}

// Sink receives published events. Implementations must not call back
// into the engine and must not block trade execution.
type Sink interface {
	Publish(ev Event)
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Publish(ev Event) {
	for _, s := range m {
		s.Publish(ev)
	}
}
