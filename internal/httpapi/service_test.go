package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/asset"
	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/httpapi"
	"github.com/curio/marketplace-engine/internal/market"
	"github.com/curio/marketplace-engine/internal/model"
	"github.com/curio/marketplace-engine/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type testEnv struct {
	bank   *asset.MemoryBank
	items  *asset.MemoryItems
	router chi.Router
}

// newTestEnv builds a service over an in-memory engine and journal,
// with one registered registry ("reg-1") and one item (1).
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	bank := asset.NewMemoryBank()
	items := asset.NewMemoryItems()
	dir := asset.NewMemoryDirectory()
	journal := store.NewMemoryJournal()

	engine, err := market.New(bank, items, dir, event.MultiSink{}, market.Config{
		Account:              "engine",
		Admin:                "admin",
		PrimaryFeePerMille:   25,
		SecondaryFeePerMille: 50,
		MinAuctionDuration:   time.Minute,
		MaxAuctionDuration:   14 * 24 * time.Hour,
		SnipeWindow:          5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	dir.Authorize("reg-1")
	if err := engine.RegisterRegistry("admin", "reg-1"); err != nil {
		t.Fatalf("failed to register registry: %v", err)
	}
	if err := items.CreateItem("reg-1", 1, asset.ItemMetadata{Creator: "creator", RoyaltyPerMille: 100, MaxSupply: 10000}); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}

	svc := httpapi.NewService(engine, journal)

	r := chi.NewRouter()
	r.Post("/api/v1/listings", svc.CreateListing)
	r.Get("/api/v1/registries/{registry}/items/{itemID}/listings/{seller}", svc.GetListing)
	r.Delete("/api/v1/registries/{registry}/items/{itemID}/listings/{seller}", svc.RemoveListing)
	r.Post("/api/v1/buy", svc.ExecuteBuy)
	r.Post("/api/v1/buy/batch", svc.ExecuteBatchBuy)
	r.Post("/api/v1/auctions", svc.CreateAuction)
	r.Get("/api/v1/auctions/{auctionID}", svc.GetAuction)
	r.Post("/api/v1/auctions/{auctionID}/bids", svc.PlaceBid)
	r.Post("/api/v1/auctions/{auctionID}/cancel", svc.CancelAuction)
	r.Post("/api/v1/offers", svc.MakeOffer)
	r.Post("/api/v1/offers/{offerID}/accept", svc.AcceptOffer)
	r.Get("/api/v1/offers/{offerID}", svc.GetOffer)
	r.Get("/api/v1/registries", svc.ListRegistries)
	r.Get("/api/v1/accounts/{account}/listings", svc.ListingsByOwner)
	r.Get("/api/v1/accounts/{account}/offers", svc.OffersByAccount)
	r.Get("/api/v1/feed", svc.RecentFeed)
	r.Post("/api/v1/admin/fees", svc.SetFees)
	r.Get("/api/v1/admin/revenue", svc.Revenue)

	return &testEnv{bank: bank, items: items, router: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestCreateListingAndBuy(t *testing.T) {
	env := newTestEnv(t)
	env.items.Mint("reg-1", "seller", 1, 10)
	env.bank.Mint("buyer", d("100"))

	w := env.do(t, "POST", "/api/v1/listings", httpapi.ListRequest{
		Seller: "seller", Registry: "reg-1", ItemID: 1, UnitPrice: d("2.5"), Quantity: 10,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var l model.Listing
	json.Unmarshal(w.Body.Bytes(), &l)
	if l.Quantity != 10 || !l.UnitPrice.Equal(d("2.5")) {
		t.Errorf("listing = %+v, want 10 units at 2.5", l)
	}

	w = env.do(t, "POST", "/api/v1/buy", httpapi.BuyRequest{
		Buyer: "buyer", Registry: "reg-1", ItemID: 1, Seller: "seller", Quantity: 4,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := env.items.BalanceOf("reg-1", "buyer", 1); got != 4 {
		t.Errorf("buyer item balance = %d, want 4", got)
	}
	if got := env.bank.BalanceOf("seller"); !got.Equal(d("8.5")) {
		t.Errorf("seller proceeds = %s, want 8.5", got)
	}

	w = env.do(t, "GET", "/api/v1/registries/reg-1/items/1/listings/seller", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &l)
	if l.Quantity != 6 {
		t.Errorf("remaining quantity = %d, want 6", l.Quantity)
	}
}

func TestBuyErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	env.items.Mint("reg-1", "seller", 1, 10)

	// No listing yet → 404.
	w := env.do(t, "POST", "/api/v1/buy", httpapi.BuyRequest{
		Buyer: "buyer", Registry: "reg-1", ItemID: 1, Seller: "seller", Quantity: 1,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing listing: expected 404, got %d", w.Code)
	}

	env.do(t, "POST", "/api/v1/listings", httpapi.ListRequest{
		Seller: "seller", Registry: "reg-1", ItemID: 1, UnitPrice: d("2.5"), Quantity: 10,
	})

	// Penniless buyer → 409.
	w = env.do(t, "POST", "/api/v1/buy", httpapi.BuyRequest{
		Buyer: "buyer", Registry: "reg-1", ItemID: 1, Seller: "seller", Quantity: 1,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("unfunded buy: expected 409, got %d", w.Code)
	}

	// Zero quantity → 400.
	w = env.do(t, "POST", "/api/v1/buy", httpapi.BuyRequest{
		Buyer: "buyer", Registry: "reg-1", ItemID: 1, Seller: "seller", Quantity: 0,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero quantity: expected 400, got %d", w.Code)
	}

	// Missing buyer → 400 before touching the engine.
	w = env.do(t, "POST", "/api/v1/buy", httpapi.BuyRequest{
		Registry: "reg-1", ItemID: 1, Seller: "seller", Quantity: 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing buyer: expected 400, got %d", w.Code)
	}
}

func TestAuctionOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.items.Mint("reg-1", "seller", 1, 5)
	env.items.SetApprovalForAll("reg-1", "seller", "engine", true)
	env.bank.Mint("bidder", d("100"))

	w := env.do(t, "POST", "/api/v1/auctions", httpapi.CreateAuctionRequest{
		Seller: "seller", Registry: "reg-1", ItemID: 1, Quantity: 5,
		StartPrice: d("1"), MinIncrement: d("0.1"), DurationSeconds: 3600,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var a model.Auction
	json.Unmarshal(w.Body.Bytes(), &a)
	if a.ID == 0 || a.Status != model.AuctionActive {
		t.Fatalf("auction = %+v, want active with id", a)
	}

	// A bid below start price + increment → 400.
	w = env.do(t, "POST", "/api/v1/auctions/1/bids", httpapi.BidRequest{Bidder: "bidder", Amount: d("1.05")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("low bid: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, "POST", "/api/v1/auctions/1/bids", httpapi.BidRequest{Bidder: "bidder", Amount: d("1.2")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &a)
	if !a.CurrentPrice.Equal(d("1.2")) || a.HighestBidder != "bidder" {
		t.Errorf("auction = %+v, want bidder at 1.2", a)
	}

	// Cancel by a stranger → 403; with a live bid even the seller → 409.
	w = env.do(t, "POST", "/api/v1/auctions/1/cancel", httpapi.ActorRequest{Actor: "mallory"})
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger cancel: expected 403, got %d", w.Code)
	}
	w = env.do(t, "POST", "/api/v1/auctions/1/cancel", httpapi.ActorRequest{Actor: "seller"})
	if w.Code != http.StatusConflict {
		t.Errorf("cancel with bid: expected 409, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/auctions/999", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown auction: expected 404, got %d", w.Code)
	}
}

func TestOfferOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.items.Mint("reg-1", "seller", 1, 5)
	env.bank.Mint("buyer", d("100"))

	w := env.do(t, "POST", "/api/v1/offers", httpapi.MakeOfferRequest{
		Buyer: "buyer", Registry: "reg-1", ItemID: 1, Seller: "seller", Quantity: 4, UnitPrice: d("2.5"),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var o model.Offer
	json.Unmarshal(w.Body.Bytes(), &o)
	if o.ID == 0 || o.Status != model.OfferPending {
		t.Fatalf("offer = %+v, want pending with id", o)
	}

	w = env.do(t, "POST", "/api/v1/offers/1/accept", httpapi.ActorRequest{Actor: "seller"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &o)
	if o.Status != model.OfferAccepted {
		t.Errorf("offer status = %s, want accepted", o.Status)
	}

	if got := env.items.BalanceOf("reg-1", "buyer", 1); got != 4 {
		t.Errorf("buyer item balance = %d, want 4", got)
	}
	if got := env.bank.BalanceOf("seller"); !got.Equal(d("8.5")) {
		t.Errorf("seller proceeds = %s, want 8.5", got)
	}

	// Pending-only index no longer lists it.
	w = env.do(t, "GET", "/api/v1/accounts/buyer/offers?role=buyer", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var pg struct {
		Total uint64 `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &pg)
	if pg.Total != 0 {
		t.Errorf("pending offers total = %d, want 0 after acceptance", pg.Total)
	}
}

func TestQueriesAndFeedOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.items.Mint("reg-1", "seller", 1, 10)
	env.bank.Mint("buyer", d("100"))

	env.do(t, "POST", "/api/v1/listings", httpapi.ListRequest{
		Seller: "seller", Registry: "reg-1", ItemID: 1, UnitPrice: d("1"), Quantity: 10,
	})

	w := env.do(t, "GET", "/api/v1/registries?offset=0&limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var regPage struct {
		Items []string `json:"items"`
		Total uint64   `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &regPage)
	if regPage.Total != 1 || len(regPage.Items) != 1 || regPage.Items[0] != "reg-1" {
		t.Errorf("registries = %+v, want just reg-1", regPage)
	}

	// Out-of-range page → 400.
	w = env.do(t, "GET", "/api/v1/registries?offset=5", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("past-end page: expected 400, got %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/accounts/seller/listings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var listingPage struct {
		Items []model.Listing `json:"items"`
		Total uint64          `json:"total"`
	}
	json.Unmarshal(w.Body.Bytes(), &listingPage)
	if listingPage.Total != 1 || len(listingPage.Items) != 1 {
		t.Errorf("listings = %+v, want one entry", listingPage)
	}

	// The feed endpoint reads the journal; wired to an empty memory
	// journal here since no recorder sink was attached.
	w = env.do(t, "GET", "/api/v1/feed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAdminOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/v1/admin/fees", httpapi.SetFeesRequest{
		Caller: "mallory", PrimaryFeePerMille: 10, SecondaryFeePerMille: 10,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-admin fee change: expected 403, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/v1/admin/fees", httpapi.SetFeesRequest{
		Caller: "admin", PrimaryFeePerMille: 10, SecondaryFeePerMille: 2000,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out-of-range rate: expected 400, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/v1/admin/fees", httpapi.SetFeesRequest{
		Caller: "admin", PrimaryFeePerMille: 10, SecondaryFeePerMille: 20,
	})
	if w.Code != http.StatusNoContent {
		t.Errorf("valid fee change: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, "GET", "/api/v1/admin/revenue", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rev map[string]string
	json.Unmarshal(w.Body.Bytes(), &rev)
	if rev["available"] != "0" || rev["locked"] != "0" {
		t.Errorf("revenue = %v, want zeroes on a fresh engine", rev)
	}
}
