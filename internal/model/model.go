// Package model defines the core domain types shared across the marketplace
// engine. All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingKind distinguishes a standing fixed-price listing from the
// placeholder entry that mirrors a live auction.
type ListingKind string

const (
	// ListingFixed is a standing offer to sell at a fixed unit price.
	ListingFixed ListingKind = "fixed"

	// ListingAuctionBacked exists only while the referenced auction is
	// active. It blocks double-listing of escrowed items and is removed
	// when the auction settles or is cancelled.
	ListingAuctionBacked ListingKind = "auction_backed"
)

// Listing is one seller's sale entry for one item in one registry.
// A listing never exists with Quantity == 0.
type Listing struct {
	Registry  string          `json:"registry"`
	ItemID    uint64          `json:"item_id"`
	Seller    string          `json:"seller"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  uint64          `json:"quantity"`
	Kind      ListingKind     `json:"kind"`
	AuctionID uint64          `json:"auction_id,omitempty"` // set iff Kind == ListingAuctionBacked
}

// AuctionStatus tracks the auction lifecycle. The only legal transitions
// are active → ended and active → cancelled; terminal states are immutable.
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

// Auction is a timed English auction over a quantity of one item.
// While active, CurrentPrice equals the highest recorded bid, or
// StartPrice if there is no bid yet; HighestBidder is empty iff no bid.
type Auction struct {
	ID            uint64          `json:"id"`
	Registry      string          `json:"registry"`
	ItemID        uint64          `json:"item_id"`
	Seller        string          `json:"seller"`
	Quantity      uint64          `json:"quantity"`
	StartPrice    decimal.Decimal `json:"start_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MinIncrement  decimal.Decimal `json:"min_increment"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	HighestBidder string          `json:"highest_bidder,omitempty"`
	Status        AuctionStatus   `json:"status"`
}

// OfferStatus tracks the offer lifecycle. Pending is the only
// non-terminal state.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferCancelled OfferStatus = "cancelled"
)

// Offer is a buyer's private bid on a seller's inventory. The buyer's
// payment (UnitPrice · Quantity) is escrowed by the engine from creation
// until a terminal transition frees it.
type Offer struct {
	ID        uint64          `json:"id"`
	Registry  string          `json:"registry"`
	ItemID    uint64          `json:"item_id"`
	Buyer     string          `json:"buyer"`
	Seller    string          `json:"seller"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  uint64          `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	Status    OfferStatus     `json:"status"`
}

// Total returns the full escrowed amount for the offer.
func (o Offer) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromUint64(o.Quantity))
}

// PurchaseRequest is one line of a fixed-price purchase. BatchBuy
// processes a slice of these as a single atomic unit.
type PurchaseRequest struct {
	Registry string `json:"registry"`
	ItemID   uint64 `json:"item_id"`
	Seller   string `json:"seller"`
	Quantity uint64 `json:"quantity"`
}
