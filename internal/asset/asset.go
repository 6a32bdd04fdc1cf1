// Package asset defines the capability interfaces the marketplace engine
// consumes: the fungible payment asset, the collectible item registries,
// and the trusted directory that authorizes registries. The engine never
// mints or administers these assets itself; it only moves them between
// accounts and queries their state.
package asset

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned by a payment transfer when the
	// source account cannot cover the amount.
	ErrInsufficientFunds = errors.New("asset: insufficient balance or allowance")

	// ErrInsufficientItems is returned by an item transfer when the
	// source holds fewer units than requested.
	ErrInsufficientItems = errors.New("asset: insufficient item balance or approval")

	// ErrUnknownItem is returned when an item id does not exist in the
	// addressed registry.
	ErrUnknownItem = errors.New("asset: unknown item")

	// ErrSupplyCapExceeded is returned when a mint would push an item
	// past its maximum supply.
	ErrSupplyCapExceeded = errors.New("asset: supply cap exceeded")
)

// PaymentLedger moves the designated fungible payment asset between
// accounts. Transfers are synchronous and atomic: they either fully apply
// or fail with no effect.
type PaymentLedger interface {
	// Transfer moves amount from one account to another.
	Transfer(from, to string, amount decimal.Decimal) error

	// BalanceOf returns the current balance of an account.
	BalanceOf(account string) decimal.Decimal
}

// ItemMetadata describes one item type in a registry.
type ItemMetadata struct {
	Creator         string
	RoyaltyPerMille int64
	MaxSupply       uint64
}

// ItemLedger moves and inspects multi-quantity collectible items across
// all registries. The registry argument addresses one external catalog.
type ItemLedger interface {
	// Transfer moves qty units of an item between holders, failing if
	// the source balance is insufficient.
	Transfer(registry, from, to string, itemID, qty uint64) error

	// BalanceOf returns how many units of an item a holder owns.
	BalanceOf(registry, holder string, itemID uint64) uint64

	// IsApprovedForAll reports whether operator may move owner's items.
	IsApprovedForAll(registry, owner, operator string) bool

	// Metadata returns the creator, royalty rate, and supply cap of an
	// item type.
	Metadata(registry string, itemID uint64) (ItemMetadata, error)
}

// Directory is the trusted collaborator that vouches for item registries.
// Only registries it authorizes may be registered for trading.
type Directory interface {
	IsAuthorized(registry string) bool
}
