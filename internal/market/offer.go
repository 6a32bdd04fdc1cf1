package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/model"
)

func (e *Engine) snapshotOffer(t *txn, id uint64) {
	if cur, ok := e.offers[id]; ok {
		prev := *cur
		t.revert(func() { e.offers[id] = &prev })
	} else {
		t.revert(func() { delete(e.offers, id) })
	}
}

func (e *Engine) offerEvent(typ event.Type, o *model.Offer) event.Event {
	ev := e.newEvent(typ)
	ev.Registry = o.Registry
	ev.ItemID = o.ItemID
	ev.Actor = o.Buyer
	ev.Counterparty = o.Seller
	ev.OfferID = o.ID
	ev.Amount = o.Total()
	ev.Quantity = o.Quantity
	return ev
}

// MakeOffer opens a private offer to buy qty units from a seller. The
// full price (unit price · quantity) is escrowed from the buyer at
// creation and held until a terminal transition frees it. Returns the
// new offer id.
func (e *Engine) MakeOffer(buyer, registry string, itemID uint64, seller string, qty uint64, unitPrice decimal.Decimal) (uint64, error) {
	var id uint64
	err := e.guarded(func(t *txn) error {
		if err := e.requireRegistered(registry); err != nil {
			return err
		}
		if seller == buyer {
			return fmt.Errorf("cannot offer to self: %w", ErrInvalidArgument)
		}
		if qty == 0 || !unitPrice.IsPositive() {
			return fmt.Errorf("price and quantity must be positive: %w", ErrInvalidArgument)
		}
		if e.items.BalanceOf(registry, seller, itemID) < qty {
			return fmt.Errorf("seller holds fewer than %d of item %d: %w", qty, itemID, ErrInsufficient)
		}

		total := unitPrice.Mul(decimal.NewFromUint64(qty))
		if err := e.pay(t, buyer, e.account, total); err != nil {
			return err
		}
		e.lockFunds(t, total)

		e.nextOfferID++
		id = e.nextOfferID
		t.revert(func() { e.nextOfferID-- })

		o := &model.Offer{
			ID:        id,
			Registry:  registry,
			ItemID:    itemID,
			Buyer:     buyer,
			Seller:    seller,
			UnitPrice: unitPrice,
			Quantity:  qty,
			CreatedAt: e.now(),
			Status:    model.OfferPending,
		}
		e.offers[id] = o
		t.revert(func() { delete(e.offers, id) })
		e.offerOrder = append(e.offerOrder, id)
		t.revert(func() { e.offerOrder = e.offerOrder[:len(e.offerOrder)-1] })

		t.emit(e.offerEvent(event.TypeOfferCreated, o))
		return nil
	})
	return id, err
}

// AcceptOffer completes a pending offer. Only the named seller may call.
// Inventory reconciliation draws first from the seller's unlisted balance
// (total minus any fixed-price listed quantity); the remainder comes out
// of the fixed-price listing, which shrinks or disappears. The order
// matters: do not reverse it. Acceptance is blocked while an auction on
// the same item is active.
func (e *Engine) AcceptOffer(caller string, offerID uint64) error {
	return e.guarded(func(t *txn) error {
		o, ok := e.offers[offerID]
		if !ok {
			return fmt.Errorf("offer %d: %w", offerID, ErrNotFound)
		}
		if caller != o.Seller {
			return fmt.Errorf("only the named seller may accept: %w", ErrUnauthorized)
		}
		if o.Status != model.OfferPending {
			return fmt.Errorf("offer %d is %s: %w", offerID, o.Status, ErrInvalidState)
		}

		balance := e.items.BalanceOf(o.Registry, o.Seller, o.ItemID)
		if balance < o.Quantity {
			return fmt.Errorf("seller holds %d of item %d, offer needs %d: %w", balance, o.ItemID, o.Quantity, ErrInsufficient)
		}

		key := listingKey{o.Registry, o.ItemID, o.Seller}
		l := e.listings[key]
		if l != nil && l.Kind == model.ListingAuctionBacked {
			if a := e.auctions[l.AuctionID]; a != nil && a.Status == model.AuctionActive {
				return fmt.Errorf("item locked by active auction %d: %w", a.ID, ErrInvalidState)
			}
		}

		var listed uint64
		if l != nil && l.Kind == model.ListingFixed {
			listed = l.Quantity
		}
		var unlisted uint64
		if balance > listed {
			unlisted = balance - listed
		}
		var fromListing uint64
		if o.Quantity > unlisted {
			fromListing = o.Quantity - unlisted
		}

		meta, err := e.items.Metadata(o.Registry, o.ItemID)
		if err != nil {
			return fmt.Errorf("item metadata: %w", err)
		}
		total := o.Total()
		quote := e.calc.Quote(total, o.Seller == meta.Creator, meta.RoyaltyPerMille)

		if err := e.moveItems(t, o.Registry, o.Seller, o.Buyer, o.ItemID, o.Quantity); err != nil {
			return err
		}
		// Payouts come out of the escrow already in custody; the platform
		// fee portion stays behind as revenue.
		if err := e.pay(t, e.account, o.Seller, quote.NetSeller); err != nil {
			return err
		}
		if err := e.pay(t, e.account, meta.Creator, quote.RoyaltyFee); err != nil {
			return err
		}
		e.lockFunds(t, total.Neg())

		if fromListing > 0 {
			e.snapshotListing(t, key)
			l.Quantity -= fromListing
			if l.Quantity == 0 {
				delete(e.listings, key)
				t.emit(e.listingEvent(event.TypeListingRemoved, l))
			} else {
				t.emit(e.listingEvent(event.TypeListingUpdated, l))
			}
		}

		e.snapshotOffer(t, offerID)
		o.Status = model.OfferAccepted

		t.emit(e.offerEvent(event.TypeOfferAccepted, o))
		return nil
	})
}

// RejectOffer refunds and closes a pending offer. Seller only.
func (e *Engine) RejectOffer(caller string, offerID uint64) error {
	return e.guarded(func(t *txn) error {
		o, ok := e.offers[offerID]
		if !ok {
			return fmt.Errorf("offer %d: %w", offerID, ErrNotFound)
		}
		if caller != o.Seller {
			return fmt.Errorf("only the named seller may reject: %w", ErrUnauthorized)
		}
		return e.closeOffer(t, o, model.OfferRejected, event.TypeOfferRejected)
	})
}

// CancelOffer refunds and closes a pending offer. Buyer only.
func (e *Engine) CancelOffer(caller string, offerID uint64) error {
	return e.guarded(func(t *txn) error {
		o, ok := e.offers[offerID]
		if !ok {
			return fmt.Errorf("offer %d: %w", offerID, ErrNotFound)
		}
		if caller != o.Buyer {
			return fmt.Errorf("only the buyer may cancel: %w", ErrUnauthorized)
		}
		return e.closeOffer(t, o, model.OfferCancelled, event.TypeOfferCancelled)
	})
}

// closeOffer refunds the escrow, releases the pool lock, and moves a
// pending offer into a terminal state.
func (e *Engine) closeOffer(t *txn, o *model.Offer, status model.OfferStatus, typ event.Type) error {
	if o.Status != model.OfferPending {
		return fmt.Errorf("offer %d is %s: %w", o.ID, o.Status, ErrInvalidState)
	}

	total := o.Total()
	if err := e.pay(t, e.account, o.Buyer, total); err != nil {
		return err
	}
	e.lockFunds(t, total.Neg())

	e.snapshotOffer(t, o.ID)
	o.Status = status

	t.emit(e.offerEvent(typ, o))
	return nil
}
