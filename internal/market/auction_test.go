package market

import (
	"errors"
	"testing"
	"time"

	"github.com/curio/marketplace-engine/internal/model"
)

func TestCreateAuctionEscrowsItems(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 10)
	v.approveEscrow("seller")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 8, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	if got := v.items.BalanceOf(registry, "seller", item); got != 2 {
		t.Errorf("seller item balance = %d, want 2", got)
	}
	if got := v.items.BalanceOf(registry, engineAcct, item); got != 8 {
		t.Errorf("custody item balance = %d, want 8", got)
	}

	a, err := v.e.GetAuction(auctionID)
	if err != nil {
		t.Fatalf("failed to get auction: %v", err)
	}
	if a.Status != model.AuctionActive || !a.CurrentPrice.Equal(d("1")) || a.HighestBidder != "" {
		t.Errorf("auction = %+v, want active at start price with no bidder", a)
	}
	if !a.EndTime.Equal(v.clock.Add(time.Hour)) {
		t.Errorf("end time = %s, want %s", a.EndTime, v.clock.Add(time.Hour))
	}

	l, err := v.e.GetListing(registry, item, "seller")
	if err != nil {
		t.Fatalf("failed to get mirrored listing: %v", err)
	}
	if l.Kind != model.ListingAuctionBacked || l.AuctionID != auctionID || l.Quantity != 8 {
		t.Errorf("mirrored listing = %+v, want auction-backed x8", l)
	}
}

func TestCreateAuctionValidation(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 10)

	// No escrow approval yet.
	if _, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour); !errors.Is(err, ErrInsufficient) {
		t.Errorf("unapproved escrow error = %v, want ErrInsufficient", err)
	}
	v.approveEscrow("seller")

	tests := []struct {
		name     string
		qty      uint64
		start    string
		incr     string
		duration time.Duration
		wantErr  error
	}{
		{"zero quantity", 0, "1", "0.1", time.Hour, ErrInvalidArgument},
		{"zero start price", 5, "0", "0.1", time.Hour, ErrInvalidArgument},
		{"zero increment", 5, "1", "0", time.Hour, ErrInvalidArgument},
		{"too short", 5, "1", "0.1", time.Second, ErrInvalidArgument},
		{"too long", 5, "1", "0.1", 365 * 24 * time.Hour, ErrInvalidArgument},
		{"beyond balance", 11, "1", "0.1", time.Hour, ErrInsufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.e.CreateAuction("seller", registry, item, tt.qty, d(tt.start), d(tt.incr), tt.duration)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// A live fixed-price listing conflicts.
	if err := v.e.List("seller", registry, item, d("2"), 5); err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if _, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour); !errors.Is(err, ErrInvalidState) {
		t.Errorf("conflicting listing error = %v, want ErrInvalidState", err)
	}
}

// Auction at start price 1.0 with increment 0.1: a bid of 1.05 is too
// low, 1.2 succeeds and becomes the current price, and a later 1.5
// refunds the 1.2 bidder exactly 1.2, exactly once.
func TestPlaceBidScenario(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 5)
	v.approveEscrow("seller")
	v.fund("b1", "100")
	v.fund("b2", "100")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	if err := v.e.PlaceBid("b1", auctionID, d("1.05")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("low bid error = %v, want ErrInvalidArgument", err)
	}

	if err := v.e.PlaceBid("b1", auctionID, d("1.2")); err != nil {
		t.Fatalf("failed to bid 1.2: %v", err)
	}
	a, _ := v.e.GetAuction(auctionID)
	if !a.CurrentPrice.Equal(d("1.2")) || a.HighestBidder != "b1" {
		t.Errorf("auction shows %s at %s, want b1 at 1.2", a.HighestBidder, a.CurrentPrice)
	}
	if got := v.bank.BalanceOf("b1"); !got.Equal(d("98.8")) {
		t.Errorf("b1 balance = %s, want 98.8", got)
	}
	v.checkPool(t)

	if err := v.e.PlaceBid("b2", auctionID, d("1.5")); err != nil {
		t.Fatalf("failed to bid 1.5: %v", err)
	}
	if got := v.bank.BalanceOf("b1"); !got.Equal(d("100")) {
		t.Errorf("b1 balance after refund = %s, want exactly 100", got)
	}
	if got := v.bank.BalanceOf("b2"); !got.Equal(d("98.5")) {
		t.Errorf("b2 balance = %s, want 98.5", got)
	}
	a, _ = v.e.GetAuction(auctionID)
	if !a.CurrentPrice.Equal(d("1.5")) || a.HighestBidder != "b2" {
		t.Errorf("auction shows %s at %s, want b2 at 1.5", a.HighestBidder, a.CurrentPrice)
	}
	// The superseded bid record is zeroed, not deleted.
	if amt, ok := v.e.bids[bidKey{auctionID, "b1"}]; !ok || !amt.IsZero() {
		t.Errorf("superseded bid = %s (present %v), want zeroed record", amt, ok)
	}
	v.checkPool(t)
}

func TestPlaceBidAntiSnipeExtension(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 5)
	v.approveEscrow("seller")
	v.fund("b1", "100")
	v.fund("b2", "100")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}
	end0 := v.clock.Add(time.Hour)

	// Bid well before the window: no extension.
	if err := v.e.PlaceBid("b1", auctionID, d("1.1")); err != nil {
		t.Fatalf("failed to bid: %v", err)
	}
	a, _ := v.e.GetAuction(auctionID)
	if !a.EndTime.Equal(end0) {
		t.Errorf("end time moved to %s, want unchanged %s", a.EndTime, end0)
	}

	// Bid two minutes before the end: end time becomes now + window.
	v.advance(58 * time.Minute)
	if err := v.e.PlaceBid("b2", auctionID, d("1.3")); err != nil {
		t.Fatalf("failed to bid: %v", err)
	}
	a, _ = v.e.GetAuction(auctionID)
	if !a.EndTime.Equal(v.clock.Add(5 * time.Minute)) {
		t.Errorf("end time = %s, want %s", a.EndTime, v.clock.Add(5*time.Minute))
	}

	// Extension repeats without bound.
	v.advance(4 * time.Minute)
	if err := v.e.PlaceBid("b1", auctionID, d("1.5")); err != nil {
		t.Fatalf("failed to re-bid: %v", err)
	}
	a, _ = v.e.GetAuction(auctionID)
	if !a.EndTime.Equal(v.clock.Add(5 * time.Minute)) {
		t.Errorf("end time = %s, want %s", a.EndTime, v.clock.Add(5*time.Minute))
	}
}

func TestPlaceBidAfterClose(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 5)
	v.approveEscrow("seller")
	v.fund("b1", "100")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	v.advance(2 * time.Hour)
	if err := v.e.PlaceBid("b1", auctionID, d("2")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("late bid error = %v, want ErrInvalidState", err)
	}
	if err := v.e.PlaceBid("b1", 999, d("2")); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown auction error = %v, want ErrNotFound", err)
	}
}

func TestSettleAuction(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 5)
	v.approveEscrow("seller")
	v.fund("winner", "100")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	if err := v.e.SettleAuction(auctionID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("early settle error = %v, want ErrInvalidState", err)
	}

	if err := v.e.PlaceBid("winner", auctionID, d("10")); err != nil {
		t.Fatalf("failed to bid: %v", err)
	}

	v.advance(2 * time.Hour)
	if err := v.e.SettleAuction(auctionID); err != nil {
		t.Fatalf("failed to settle: %v", err)
	}

	// gross 10; secondary fee 0.5; royalty 1; net 8.5
	if got := v.bank.BalanceOf("seller"); !got.Equal(d("8.5")) {
		t.Errorf("seller proceeds = %s, want 8.5", got)
	}
	if got := v.bank.BalanceOf(creator); !got.Equal(d("1")) {
		t.Errorf("creator royalty = %s, want 1", got)
	}
	if got := v.bank.BalanceOf(engineAcct); !got.Equal(d("0.5")) {
		t.Errorf("platform fee = %s, want 0.5", got)
	}
	if got := v.items.BalanceOf(registry, "winner", item); got != 5 {
		t.Errorf("winner item balance = %d, want 5", got)
	}

	a, _ := v.e.GetAuction(auctionID)
	if a.Status != model.AuctionEnded {
		t.Errorf("auction status = %s, want ended", a.Status)
	}
	if _, err := v.e.GetListing(registry, item, "seller"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mirrored listing lookup error = %v, want ErrNotFound", err)
	}
	v.checkPool(t)

	// Terminal states are immutable.
	if err := v.e.SettleAuction(auctionID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double settle error = %v, want ErrInvalidState", err)
	}
	if err := v.e.CancelAuction("seller", auctionID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cancel after settle error = %v, want ErrInvalidState", err)
	}
}

func TestSettleAuctionWithoutBids(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 5)
	v.approveEscrow("seller")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	v.advance(2 * time.Hour)
	if err := v.e.SettleAuction(auctionID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("bidless settle error = %v, want ErrInvalidState", err)
	}
}

func TestCancelAuction(t *testing.T) {
	v := newTestEnv(t)
	v.mint(t, "seller", 5)
	v.approveEscrow("seller")
	v.fund("bidder", "100")

	auctionID, err := v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}

	if err := v.e.CancelAuction("mallory", auctionID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-seller cancel error = %v, want ErrUnauthorized", err)
	}

	if err := v.e.CancelAuction("seller", auctionID); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}
	if got := v.items.BalanceOf(registry, "seller", item); got != 5 {
		t.Errorf("seller item balance = %d, want 5 after escrow return", got)
	}
	a, _ := v.e.GetAuction(auctionID)
	if a.Status != model.AuctionCancelled {
		t.Errorf("auction status = %s, want cancelled", a.Status)
	}
	if _, err := v.e.GetListing(registry, item, "seller"); !errors.Is(err, ErrNotFound) {
		t.Errorf("mirrored listing lookup error = %v, want ErrNotFound", err)
	}

	// Once a bid exists, cancellation is forbidden outright.
	auctionID, err = v.e.CreateAuction("seller", registry, item, 5, d("1"), d("0.1"), time.Hour)
	if err != nil {
		t.Fatalf("failed to recreate auction: %v", err)
	}
	if err := v.e.PlaceBid("bidder", auctionID, d("1.5")); err != nil {
		t.Fatalf("failed to bid: %v", err)
	}
	if err := v.e.CancelAuction("seller", auctionID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cancel with bid error = %v, want ErrInvalidState", err)
	}
	v.checkPool(t)
}
