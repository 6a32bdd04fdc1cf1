// Package market implements the custodial trading engine for fractional
// digital collectibles: fixed-price listings, English auctions, private
// offers, fee and royalty settlement, and the locked-funds pool that keeps
// every escrowed unit of the payment asset accounted for.
//
// The engine owns all of its state exclusively. Every unit of payment
// asset held in its custody account is either unencumbered platform
// revenue or locked against a specific open auction bid or pending offer.
//
// All monetary values use shopspring/decimal, never float64.
package market

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/asset"
	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/fees"
	"github.com/curio/marketplace-engine/internal/model"
)

var (
	// ErrReentrantCall is returned when a mutating entry point is invoked
	// while another one is still in progress on the same engine.
	ErrReentrantCall = errors.New("market: reentrant call rejected")

	// ErrUnauthorized is returned when the caller is not permitted to
	// perform a seller-, buyer-, or admin-only action.
	ErrUnauthorized = errors.New("market: caller not authorized")

	// ErrInvalidState is returned when the operation is not legal for the
	// current status of the targeted listing, auction, or offer.
	ErrInvalidState = errors.New("market: operation invalid for current state")

	// ErrInvalidArgument is returned for zero or out-of-range parameters.
	ErrInvalidArgument = errors.New("market: invalid argument")

	// ErrInsufficient is returned when a balance, allowance, or listed
	// quantity cannot cover the request.
	ErrInsufficient = errors.New("market: insufficient balance or quantity")

	// ErrNotFound is returned when the targeted entity does not exist.
	ErrNotFound = errors.New("market: not found")

	// ErrRegistryNotRegistered is returned when an operation addresses a
	// registry that has not been registered for trading.
	ErrRegistryNotRegistered = errors.New("market: registry not registered")

	// ErrPageOutOfRange is returned by queries when offset > total.
	ErrPageOutOfRange = errors.New("market: page offset out of range")
)

type listingKey struct {
	registry string
	itemID   uint64
	seller   string
}

type bidKey struct {
	auctionID uint64
	bidder    string
}

// Config carries the engine's trading parameters. All fee rates are per
// mille and bounded to [0, 1000]; auction bounds must satisfy
// 0 < MinAuctionDuration <= MaxAuctionDuration.
type Config struct {
	// Account is the engine's custody account in the payment and item
	// ledgers. Escrowed bids, offers, and auctioned items live here.
	Account string

	// Admin may change fees, auction bounds, and withdraw revenue.
	Admin string

	PrimaryFeePerMille   int64 // applies when the seller is the item's creator
	SecondaryFeePerMille int64 // applies otherwise

	MinAuctionDuration time.Duration
	MaxAuctionDuration time.Duration
	SnipeWindow        time.Duration // anti-snipe end-time extension window
}

// Engine is the marketplace trading engine. It is not safe for concurrent
// use by itself: callers must serialize mutating operations (the HTTP
// service does this with a mutex). Nested calls from within collaborator
// transfers are rejected by the reentrancy guard.
type Engine struct {
	bank  asset.PaymentLedger
	items asset.ItemLedger
	dir   asset.Directory
	sink  event.Sink

	account string
	admin   string

	calc        fees.Calculator
	minDuration time.Duration
	maxDuration time.Duration
	snipeWindow time.Duration

	entered atomic.Bool
	now     func() time.Time

	listings     map[listingKey]*model.Listing
	listingOrder []listingKey
	listingSeen  map[listingKey]bool

	auctions map[uint64]*model.Auction
	bids     map[bidKey]decimal.Decimal

	offers     map[uint64]*model.Offer
	offerOrder []uint64

	registered    map[string]bool
	registryOrder []string

	lockedPool    decimal.Decimal
	nextAuctionID uint64
	nextOfferID   uint64
}

// New creates an engine over the given collaborators. Pass nil for sink
// if event publication is not needed.
func New(bank asset.PaymentLedger, items asset.ItemLedger, dir asset.Directory, sink event.Sink, cfg Config) (*Engine, error) {
	if cfg.Account == "" || cfg.Admin == "" {
		return nil, fmt.Errorf("engine account and admin required: %w", ErrInvalidArgument)
	}
	if !fees.ValidRate(cfg.PrimaryFeePerMille) || !fees.ValidRate(cfg.SecondaryFeePerMille) {
		return nil, fmt.Errorf("fee rates must be within [0, 1000] per mille: %w", ErrInvalidArgument)
	}
	if cfg.MinAuctionDuration <= 0 || cfg.MaxAuctionDuration < cfg.MinAuctionDuration {
		return nil, fmt.Errorf("auction duration bounds out of order: %w", ErrInvalidArgument)
	}
	if cfg.SnipeWindow <= 0 {
		return nil, fmt.Errorf("snipe window must be positive: %w", ErrInvalidArgument)
	}

	return &Engine{
		bank:        bank,
		items:       items,
		dir:         dir,
		sink:        sink,
		account:     cfg.Account,
		admin:       cfg.Admin,
		calc:        fees.Calculator{PrimaryRate: cfg.PrimaryFeePerMille, SecondaryRate: cfg.SecondaryFeePerMille},
		minDuration: cfg.MinAuctionDuration,
		maxDuration: cfg.MaxAuctionDuration,
		snipeWindow: cfg.SnipeWindow,
		now:         time.Now,
		listings:    make(map[listingKey]*model.Listing),
		listingSeen: make(map[listingKey]bool),
		auctions:    make(map[uint64]*model.Auction),
		bids:        make(map[bidKey]decimal.Decimal),
		offers:      make(map[uint64]*model.Offer),
		registered:  make(map[string]bool),
	}, nil
}

// guarded runs fn under the reentrancy guard with rollback-on-error
// semantics: if fn fails, every transfer it performed is reversed and
// every state change restored, leaving the engine exactly as before the
// call. Events collected by fn are published only on success.
func (e *Engine) guarded(fn func(t *txn) error) error {
	if !e.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer e.entered.Store(false)

	t := &txn{}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	if e.sink != nil {
		for _, ev := range t.events {
			e.sink.Publish(ev)
		}
	}
	return nil
}

// newEvent seeds an event with id, type, and timestamp.
func (e *Engine) newEvent(typ event.Type) event.Event {
	return event.Event{ID: uuid.NewString(), Type: typ, At: e.now()}
}

// pay moves payment asset and records the reverse transfer for rollback.
// Zero amounts are skipped entirely (royalty-skip rule).
func (e *Engine) pay(t *txn, from, to string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	if err := e.bank.Transfer(from, to, amount); err != nil {
		return fmt.Errorf("payment %s from %s to %s: %v: %w", amount, from, to, err, ErrInsufficient)
	}
	t.revert(func() { _ = e.bank.Transfer(to, from, amount) })
	return nil
}

// moveItems transfers items and records the reverse transfer for rollback.
func (e *Engine) moveItems(t *txn, registry, from, to string, itemID, qty uint64) error {
	if qty == 0 {
		return nil
	}
	if err := e.items.Transfer(registry, from, to, itemID, qty); err != nil {
		return fmt.Errorf("item transfer %d of %d from %s: %v: %w", qty, itemID, from, err, ErrInsufficient)
	}
	t.revert(func() { _ = e.items.Transfer(registry, to, from, itemID, qty) })
	return nil
}

// lockFunds adjusts the locked pool by delta (negative to release).
func (e *Engine) lockFunds(t *txn, delta decimal.Decimal) {
	prev := e.lockedPool
	e.lockedPool = e.lockedPool.Add(delta)
	t.revert(func() { e.lockedPool = prev })
}

// requireRegistered rejects operations against unregistered registries.
func (e *Engine) requireRegistered(registry string) error {
	if !e.registered[registry] {
		return fmt.Errorf("registry %s: %w", registry, ErrRegistryNotRegistered)
	}
	return nil
}

// LockedFunds returns the sum currently earmarked against active auction
// bids and pending offers. Balance above this is withdrawable revenue.
func (e *Engine) LockedFunds() decimal.Decimal {
	return e.lockedPool
}

// AvailableRevenue returns the engine's custody balance in excess of the
// locked pool.
func (e *Engine) AvailableRevenue() decimal.Decimal {
	return e.bank.BalanceOf(e.account).Sub(e.lockedPool)
}

// txn is the per-invocation undo log. Transfers and state mutations push
// reverse closures; rollback applies them newest-first so a failed
// invocation leaves no partial effects.
type txn struct {
	undo   []func()
	events []event.Event
}

func (t *txn) revert(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *txn) emit(ev event.Event) {
	t.events = append(t.events, ev)
}

func (t *txn) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.events = nil
}
