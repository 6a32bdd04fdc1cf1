package market

import (
	"fmt"

	"github.com/curio/marketplace-engine/internal/model"
)

// paginate bounds a page request against total. offset == total yields an
// empty page; offset > total fails. The page size is min(limit, rest).
func paginate(total, offset, limit uint64) (start, end uint64, err error) {
	if offset > total {
		return 0, 0, fmt.Errorf("offset %d exceeds total %d: %w", offset, total, ErrPageOutOfRange)
	}
	n := total - offset
	if limit < n {
		n = limit
	}
	return offset, offset + n, nil
}

// Registries returns a page of registered registry identifiers in
// registration order, plus the total count.
func (e *Engine) Registries(offset, limit uint64) ([]string, uint64, error) {
	total := uint64(len(e.registryOrder))
	start, end, err := paginate(total, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	page := make([]string, end-start)
	copy(page, e.registryOrder[start:end])
	return page, total, nil
}

// ListingsByOwner returns a page of one seller's live listings in
// insertion order, plus the total count. Removed listings keep their
// index slot but are excluded here.
func (e *Engine) ListingsByOwner(owner string, offset, limit uint64) ([]model.Listing, uint64, error) {
	var all []model.Listing
	for _, key := range e.listingOrder {
		l, ok := e.listings[key]
		if !ok || l.Seller != owner {
			continue
		}
		all = append(all, *l)
	}

	total := uint64(len(all))
	start, end, err := paginate(total, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return all[start:end], total, nil
}

// OffersByItem returns a page of pending offers on one item.
func (e *Engine) OffersByItem(registry string, itemID uint64, offset, limit uint64) ([]model.Offer, uint64, error) {
	return e.offerPage(offset, limit, func(o *model.Offer) bool {
		return o.Registry == registry && o.ItemID == itemID
	})
}

// OffersBySeller returns a page of pending offers addressed to one seller.
func (e *Engine) OffersBySeller(seller string, offset, limit uint64) ([]model.Offer, uint64, error) {
	return e.offerPage(offset, limit, func(o *model.Offer) bool {
		return o.Seller == seller
	})
}

// OffersByBuyer returns a page of pending offers made by one buyer.
func (e *Engine) OffersByBuyer(buyer string, offset, limit uint64) ([]model.Offer, uint64, error) {
	return e.offerPage(offset, limit, func(o *model.Offer) bool {
		return o.Buyer == buyer
	})
}

// offerPage enumerates pending offers in creation order. Terminal offers
// are excluded from counts but never physically removed. Linear scan:
// acceptable while index sizes stay bounded; large deployments should
// maintain secondary indexes without changing these semantics.
func (e *Engine) offerPage(offset, limit uint64, match func(*model.Offer) bool) ([]model.Offer, uint64, error) {
	var all []model.Offer
	for _, id := range e.offerOrder {
		o, ok := e.offers[id]
		if !ok || o.Status != model.OfferPending || !match(o) {
			continue
		}
		all = append(all, *o)
	}

	total := uint64(len(all))
	start, end, err := paginate(total, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return all[start:end], total, nil
}

// GetListing returns a copy of one seller's listing for an item.
func (e *Engine) GetListing(registry string, itemID uint64, seller string) (model.Listing, error) {
	l, ok := e.listings[listingKey{registry, itemID, seller}]
	if !ok {
		return model.Listing{}, fmt.Errorf("no listing of item %d by %s: %w", itemID, seller, ErrNotFound)
	}
	return *l, nil
}

// GetAuction returns a copy of an auction by id.
func (e *Engine) GetAuction(id uint64) (model.Auction, error) {
	a, ok := e.auctions[id]
	if !ok {
		return model.Auction{}, fmt.Errorf("auction %d: %w", id, ErrNotFound)
	}
	return *a, nil
}

// GetOffer returns a copy of an offer by id.
func (e *Engine) GetOffer(id uint64) (model.Offer, error) {
	o, ok := e.offers[id]
	if !ok {
		return model.Offer{}, fmt.Errorf("offer %d: %w", id, ErrNotFound)
	}
	return *o, nil
}
