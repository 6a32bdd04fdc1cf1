package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/model"
)

// snapshotListing records the current value (or absence) of a listing so
// rollback can restore it.
func (e *Engine) snapshotListing(t *txn, key listingKey) {
	if cur, ok := e.listings[key]; ok {
		prev := *cur
		t.revert(func() { e.listings[key] = &prev })
	} else {
		t.revert(func() { delete(e.listings, key) })
	}
}

// putListing inserts or replaces a listing and keeps the insertion-order
// index consistent. A key keeps its original position across re-listings.
func (e *Engine) putListing(t *txn, key listingKey, l *model.Listing) {
	e.snapshotListing(t, key)
	e.listings[key] = l
	if !e.listingSeen[key] {
		e.listingSeen[key] = true
		e.listingOrder = append(e.listingOrder, key)
		t.revert(func() {
			e.listingOrder = e.listingOrder[:len(e.listingOrder)-1]
			delete(e.listingSeen, key)
		})
	}
}

// dropListing removes a listing, with rollback support. The order index
// keeps the key; enumeration skips keys with no live entry.
func (e *Engine) dropListing(t *txn, key listingKey) {
	e.snapshotListing(t, key)
	delete(e.listings, key)
}

func (e *Engine) listingEvent(typ event.Type, l *model.Listing) event.Event {
	ev := e.newEvent(typ)
	ev.Registry = l.Registry
	ev.ItemID = l.ItemID
	ev.Actor = l.Seller
	ev.Amount = l.UnitPrice
	ev.Quantity = l.Quantity
	return ev
}

// List creates or replaces the seller's fixed-price listing for one item.
// Replace semantics: a prior fixed-price listing for the same item is
// overwritten, not added to. Fails while the item is locked by a live
// auction-backed entry.
func (e *Engine) List(seller, registry string, itemID uint64, unitPrice decimal.Decimal, qty uint64) error {
	return e.guarded(func(t *txn) error {
		if err := e.requireRegistered(registry); err != nil {
			return err
		}
		if qty == 0 || !unitPrice.IsPositive() {
			return fmt.Errorf("price and quantity must be positive: %w", ErrInvalidArgument)
		}
		if e.items.BalanceOf(registry, seller, itemID) < qty {
			return fmt.Errorf("listing %d of item %d: %w", qty, itemID, ErrInsufficient)
		}

		key := listingKey{registry, itemID, seller}
		if cur, ok := e.listings[key]; ok && cur.Kind == model.ListingAuctionBacked {
			return fmt.Errorf("item locked by auction %d: %w", cur.AuctionID, ErrInvalidState)
		}

		l := &model.Listing{
			Registry:  registry,
			ItemID:    itemID,
			Seller:    seller,
			UnitPrice: unitPrice,
			Quantity:  qty,
			Kind:      model.ListingFixed,
		}
		e.putListing(t, key, l)
		t.emit(e.listingEvent(event.TypeListingCreated, l))
		return nil
	})
}

// RemoveListing deletes the caller's listing for one item. Removing an
// auction-backed listing cancels its auction, which is only possible
// while the auction is active with no bid; the escrowed items return to
// the seller.
func (e *Engine) RemoveListing(seller, registry string, itemID uint64) error {
	return e.guarded(func(t *txn) error {
		key := listingKey{registry, itemID, seller}
		l, ok := e.listings[key]
		if !ok {
			return fmt.Errorf("no listing of item %d by %s: %w", itemID, seller, ErrNotFound)
		}

		if l.Kind == model.ListingAuctionBacked {
			a := e.auctions[l.AuctionID]
			if a == nil || a.Status != model.AuctionActive {
				return fmt.Errorf("auction %d is not active: %w", l.AuctionID, ErrInvalidState)
			}
			if a.HighestBidder != "" {
				return fmt.Errorf("auction %d already has a bid: %w", a.ID, ErrInvalidState)
			}

			e.snapshotAuction(t, a.ID)
			a.Status = model.AuctionCancelled
			if err := e.moveItems(t, registry, e.account, seller, itemID, a.Quantity); err != nil {
				return err
			}

			ev := e.newEvent(event.TypeAuctionCancelled)
			ev.Registry = registry
			ev.ItemID = itemID
			ev.Actor = seller
			ev.AuctionID = a.ID
			ev.Quantity = a.Quantity
			t.emit(ev)
		}

		removed := e.listingEvent(event.TypeListingRemoved, l)
		e.dropListing(t, key)
		t.emit(removed)
		return nil
	})
}

// Buy purchases qty units from a seller's fixed-price listing. The buyer
// pays the platform fee, net proceeds, and (when non-zero) the creator
// royalty in three transfers, then receives the items.
func (e *Engine) Buy(buyer, registry string, itemID uint64, seller string, qty uint64) error {
	return e.guarded(func(t *txn) error {
		return e.buyLocked(t, buyer, model.PurchaseRequest{
			Registry: registry,
			ItemID:   itemID,
			Seller:   seller,
			Quantity: qty,
		})
	})
}

// BatchBuy processes purchase requests in caller order as one atomic
// unit: any line failing reverts every preceding line's transfers and
// listing changes in the same invocation.
func (e *Engine) BatchBuy(buyer string, reqs []model.PurchaseRequest) error {
	return e.guarded(func(t *txn) error {
		if len(reqs) == 0 {
			return fmt.Errorf("empty purchase batch: %w", ErrInvalidArgument)
		}
		for _, req := range reqs {
			if err := e.buyLocked(t, buyer, req); err != nil {
				return fmt.Errorf("purchase of item %d from %s: %w", req.ItemID, req.Seller, err)
			}
		}
		return nil
	})
}

func (e *Engine) buyLocked(t *txn, buyer string, req model.PurchaseRequest) error {
	if err := e.requireRegistered(req.Registry); err != nil {
		return err
	}
	if req.Quantity == 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidArgument)
	}

	key := listingKey{req.Registry, req.ItemID, req.Seller}
	l, ok := e.listings[key]
	if !ok {
		return fmt.Errorf("no listing: %w", ErrNotFound)
	}
	if l.Kind != model.ListingFixed {
		return fmt.Errorf("listing is auction backed: %w", ErrInvalidState)
	}
	if l.Quantity < req.Quantity {
		return fmt.Errorf("listed quantity %d below requested %d: %w", l.Quantity, req.Quantity, ErrInsufficient)
	}

	meta, err := e.items.Metadata(req.Registry, req.ItemID)
	if err != nil {
		return fmt.Errorf("item metadata: %w", err)
	}

	gross := l.UnitPrice.Mul(decimal.NewFromUint64(req.Quantity))
	quote := e.calc.Quote(gross, req.Seller == meta.Creator, meta.RoyaltyPerMille)

	if err := e.pay(t, buyer, e.account, quote.PlatformFee); err != nil {
		return err
	}
	if err := e.pay(t, buyer, req.Seller, quote.NetSeller); err != nil {
		return err
	}
	if err := e.pay(t, buyer, meta.Creator, quote.RoyaltyFee); err != nil {
		return err
	}
	if err := e.moveItems(t, req.Registry, req.Seller, buyer, req.ItemID, req.Quantity); err != nil {
		return err
	}

	e.snapshotListing(t, key)
	l.Quantity -= req.Quantity
	exhausted := l.Quantity == 0
	if exhausted {
		delete(e.listings, key)
	}

	sold := e.newEvent(event.TypeItemSold)
	sold.Registry = req.Registry
	sold.ItemID = req.ItemID
	sold.Actor = buyer
	sold.Counterparty = req.Seller
	sold.Amount = gross
	sold.Quantity = req.Quantity
	t.emit(sold)

	if exhausted {
		t.emit(e.listingEvent(event.TypeListingRemoved, l))
	} else {
		t.emit(e.listingEvent(event.TypeListingUpdated, l))
	}
	return nil
}
