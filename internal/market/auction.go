package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/model"
)

func (e *Engine) snapshotAuction(t *txn, id uint64) {
	if cur, ok := e.auctions[id]; ok {
		prev := *cur
		t.revert(func() { e.auctions[id] = &prev })
	} else {
		t.revert(func() { delete(e.auctions, id) })
	}
}

// snapshotBid records the current value (or absence) of a bid record.
// Superseded bids are zeroed, never deleted, to prevent double refunds.
func (e *Engine) snapshotBid(t *txn, key bidKey) {
	if amt, ok := e.bids[key]; ok {
		t.revert(func() { e.bids[key] = amt })
	} else {
		t.revert(func() { delete(e.bids, key) })
	}
}

func (e *Engine) auctionEvent(typ event.Type, a *model.Auction) event.Event {
	ev := e.newEvent(typ)
	ev.Registry = a.Registry
	ev.ItemID = a.ItemID
	ev.Actor = a.Seller
	ev.AuctionID = a.ID
	ev.Amount = a.CurrentPrice
	ev.Quantity = a.Quantity
	return ev
}

// CreateAuction escrows qty items into engine custody and opens an
// English auction over them. A mirrored auction-backed listing blocks
// double-listing of the escrowed items until the auction ends or is
// cancelled. Returns the new auction id.
func (e *Engine) CreateAuction(seller, registry string, itemID, qty uint64, startPrice, minIncrement decimal.Decimal, duration time.Duration) (uint64, error) {
	var id uint64
	err := e.guarded(func(t *txn) error {
		if err := e.requireRegistered(registry); err != nil {
			return err
		}
		if qty == 0 || !startPrice.IsPositive() || !minIncrement.IsPositive() {
			return fmt.Errorf("quantity, start price, and increment must be positive: %w", ErrInvalidArgument)
		}
		if duration < e.minDuration || duration > e.maxDuration {
			return fmt.Errorf("duration %s outside [%s, %s]: %w", duration, e.minDuration, e.maxDuration, ErrInvalidArgument)
		}
		if e.items.BalanceOf(registry, seller, itemID) < qty {
			return fmt.Errorf("auctioning %d of item %d: %w", qty, itemID, ErrInsufficient)
		}
		if !e.items.IsApprovedForAll(registry, seller, e.account) {
			return fmt.Errorf("items not approved for escrow: %w", ErrInsufficient)
		}

		key := listingKey{registry, itemID, seller}
		if _, ok := e.listings[key]; ok {
			return fmt.Errorf("item already listed: %w", ErrInvalidState)
		}

		if err := e.moveItems(t, registry, seller, e.account, itemID, qty); err != nil {
			return err
		}

		e.nextAuctionID++
		id = e.nextAuctionID
		t.revert(func() { e.nextAuctionID-- })

		now := e.now()
		a := &model.Auction{
			ID:           id,
			Registry:     registry,
			ItemID:       itemID,
			Seller:       seller,
			Quantity:     qty,
			StartPrice:   startPrice,
			CurrentPrice: startPrice,
			MinIncrement: minIncrement,
			StartTime:    now,
			EndTime:      now.Add(duration),
			Status:       model.AuctionActive,
		}
		e.auctions[id] = a
		t.revert(func() { delete(e.auctions, id) })

		e.putListing(t, key, &model.Listing{
			Registry:  registry,
			ItemID:    itemID,
			Seller:    seller,
			UnitPrice: startPrice,
			Quantity:  qty,
			Kind:      model.ListingAuctionBacked,
			AuctionID: id,
		})

		t.emit(e.auctionEvent(event.TypeAuctionCreated, a))
		return nil
	})
	return id, err
}

// PlaceBid records a new highest bid. The new amount is pulled from the
// bidder before the previous highest bidder is refunded, so the locked
// pool is never under-collateralized mid-call. A bid arriving within the
// snipe window pushes the end time out by the window; extension repeats
// without bound.
func (e *Engine) PlaceBid(bidder string, auctionID uint64, amount decimal.Decimal) error {
	return e.guarded(func(t *txn) error {
		a, ok := e.auctions[auctionID]
		if !ok {
			return fmt.Errorf("auction %d: %w", auctionID, ErrNotFound)
		}
		if a.Status != model.AuctionActive {
			return fmt.Errorf("auction %d is %s: %w", auctionID, a.Status, ErrInvalidState)
		}

		now := e.now()
		if now.After(a.EndTime) {
			return fmt.Errorf("auction %d bidding closed: %w", auctionID, ErrInvalidState)
		}

		minBid := a.CurrentPrice.Add(a.MinIncrement)
		if amount.LessThan(minBid) {
			return fmt.Errorf("bid %s below minimum %s: %w", amount, minBid, ErrInvalidArgument)
		}

		e.snapshotAuction(t, auctionID)

		if a.EndTime.Sub(now) <= e.snipeWindow {
			a.EndTime = now.Add(e.snipeWindow)
			ext := e.auctionEvent(event.TypeAuctionExtended, a)
			ext.Actor = bidder
			t.emit(ext)
		}

		// Pull the new bid first, then refund the displaced bidder.
		if err := e.pay(t, bidder, e.account, amount); err != nil {
			return err
		}

		prevAmount := decimal.Zero
		if prev := a.HighestBidder; prev != "" {
			prevKey := bidKey{auctionID, prev}
			prevAmount = e.bids[prevKey]
			if err := e.pay(t, e.account, prev, prevAmount); err != nil {
				return err
			}
			e.snapshotBid(t, prevKey)
			e.bids[prevKey] = decimal.Zero
		}

		key := bidKey{auctionID, bidder}
		e.snapshotBid(t, key)
		e.bids[key] = amount

		e.lockFunds(t, amount.Sub(prevAmount))
		a.CurrentPrice = amount
		a.HighestBidder = bidder

		bid := e.auctionEvent(event.TypeAuctionBid, a)
		bid.Actor = bidder
		t.emit(bid)
		return nil
	})
}

// SettleAuction finalizes an expired auction with at least one bid:
// the seller and creator are paid out of the escrowed final price, the
// items go to the highest bidder, and the mirrored listing disappears.
func (e *Engine) SettleAuction(auctionID uint64) error {
	return e.guarded(func(t *txn) error {
		a, ok := e.auctions[auctionID]
		if !ok {
			return fmt.Errorf("auction %d: %w", auctionID, ErrNotFound)
		}
		if a.Status != model.AuctionActive {
			return fmt.Errorf("auction %d is %s: %w", auctionID, a.Status, ErrInvalidState)
		}
		if !e.now().After(a.EndTime) {
			return fmt.Errorf("auction %d still running: %w", auctionID, ErrInvalidState)
		}
		if a.HighestBidder == "" {
			return fmt.Errorf("auction %d has no bids: %w", auctionID, ErrInvalidState)
		}

		meta, err := e.items.Metadata(a.Registry, a.ItemID)
		if err != nil {
			return fmt.Errorf("item metadata: %w", err)
		}
		quote := e.calc.Quote(a.CurrentPrice, a.Seller == meta.Creator, meta.RoyaltyPerMille)

		e.snapshotAuction(t, auctionID)
		a.Status = model.AuctionEnded

		// The platform fee portion of the escrowed price stays in the
		// custody account as revenue.
		if err := e.pay(t, e.account, a.Seller, quote.NetSeller); err != nil {
			return err
		}
		if err := e.pay(t, e.account, meta.Creator, quote.RoyaltyFee); err != nil {
			return err
		}
		if err := e.moveItems(t, a.Registry, e.account, a.HighestBidder, a.ItemID, a.Quantity); err != nil {
			return err
		}

		e.lockFunds(t, a.CurrentPrice.Neg())

		key := listingKey{a.Registry, a.ItemID, a.Seller}
		if l, ok := e.listings[key]; ok {
			removed := e.listingEvent(event.TypeListingRemoved, l)
			e.dropListing(t, key)
			t.emit(removed)
		}

		settled := e.auctionEvent(event.TypeAuctionSettled, a)
		settled.Actor = a.HighestBidder
		settled.Counterparty = a.Seller
		t.emit(settled)
		return nil
	})
}

// CancelAuction lets the seller withdraw an auction that has attracted no
// bid: the escrowed items return and the mirrored listing disappears.
// Once a bid exists, cancellation is forbidden outright.
func (e *Engine) CancelAuction(caller string, auctionID uint64) error {
	return e.guarded(func(t *txn) error {
		a, ok := e.auctions[auctionID]
		if !ok {
			return fmt.Errorf("auction %d: %w", auctionID, ErrNotFound)
		}
		if a.Status != model.AuctionActive {
			return fmt.Errorf("auction %d is %s: %w", auctionID, a.Status, ErrInvalidState)
		}
		if caller != a.Seller {
			return fmt.Errorf("only the seller may cancel: %w", ErrUnauthorized)
		}
		if a.HighestBidder != "" {
			return fmt.Errorf("auction %d already has a bid: %w", auctionID, ErrInvalidState)
		}

		e.snapshotAuction(t, auctionID)
		a.Status = model.AuctionCancelled

		if err := e.moveItems(t, a.Registry, e.account, a.Seller, a.ItemID, a.Quantity); err != nil {
			return err
		}

		key := listingKey{a.Registry, a.ItemID, a.Seller}
		if l, ok := e.listings[key]; ok {
			removed := e.listingEvent(event.TypeListingRemoved, l)
			e.dropListing(t, key)
			t.emit(removed)
		}

		t.emit(e.auctionEvent(event.TypeAuctionCancelled, a))
		return nil
	})
}
