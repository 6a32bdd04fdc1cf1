// Package httpapi provides the HTTP handlers for listings, auctions,
// offers, the admin surface, and the trade feed queries.
//
// All monetary values use shopspring/decimal, never float64 for money.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/curio/marketplace-engine/internal/market"
	"github.com/curio/marketplace-engine/internal/metrics"
	"github.com/curio/marketplace-engine/internal/model"
	"github.com/curio/marketplace-engine/internal/store"
)

// Service handles marketplace operations over HTTP. Uses a mutex for
// serialized trade execution (single-instance). For horizontal scaling,
// replace with distributed locking or database-level optimistic
// concurrency.
type Service struct {
	engine  *market.Engine
	journal store.Journal
	mu      sync.Mutex
}

// NewService creates a new marketplace HTTP service.
func NewService(engine *market.Engine, journal store.Journal) *Service {
	return &Service{engine: engine, journal: journal}
}

// --- Request types ---

// ListRequest is the JSON body for POST /listings.
type ListRequest struct {
	Seller    string          `json:"seller"`
	Registry  string          `json:"registry"`
	ItemID    uint64          `json:"item_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  uint64          `json:"quantity"`
}

// BuyRequest is the JSON body for POST /buy.
type BuyRequest struct {
	Buyer    string `json:"buyer"`
	Registry string `json:"registry"`
	ItemID   uint64 `json:"item_id"`
	Seller   string `json:"seller"`
	Quantity uint64 `json:"quantity"`
}

// BatchBuyRequest is the JSON body for POST /buy/batch.
type BatchBuyRequest struct {
	Buyer     string                  `json:"buyer"`
	Purchases []model.PurchaseRequest `json:"purchases"`
}

// CreateAuctionRequest is the JSON body for POST /auctions.
type CreateAuctionRequest struct {
	Seller          string          `json:"seller"`
	Registry        string          `json:"registry"`
	ItemID          uint64          `json:"item_id"`
	Quantity        uint64          `json:"quantity"`
	StartPrice      decimal.Decimal `json:"start_price"`
	MinIncrement    decimal.Decimal `json:"min_increment"`
	DurationSeconds int64           `json:"duration_seconds"`
}

// BidRequest is the JSON body for POST /auctions/{auctionID}/bids.
type BidRequest struct {
	Bidder string          `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
}

// MakeOfferRequest is the JSON body for POST /offers.
type MakeOfferRequest struct {
	Buyer     string          `json:"buyer"`
	Registry  string          `json:"registry"`
	ItemID    uint64          `json:"item_id"`
	Seller    string          `json:"seller"`
	Quantity  uint64          `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ActorRequest carries just the acting account, for the accept, reject,
// cancel, and settle endpoints.
type ActorRequest struct {
	Actor string `json:"actor"`
}

// --- Listing handlers ---

// CreateListing handles POST /api/v1/listings
func (s *Service) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seller == "" {
		writeError(w, "seller is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.List(req.Seller, req.Registry, req.ItemID, req.UnitPrice, req.Quantity); err != nil {
		writeEngineError(w, err)
		return
	}

	l, err := s.engine.GetListing(req.Registry, req.ItemID, req.Seller)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("listing created",
		"seller", req.Seller,
		"registry", req.Registry,
		"item", req.ItemID,
		"unit_price", req.UnitPrice.String(),
		"quantity", req.Quantity,
	)

	writeJSON(w, http.StatusCreated, l)
}

// RemoveListing handles DELETE /api/v1/registries/{registry}/items/{itemID}/listings/{seller}
func (s *Service) RemoveListing(w http.ResponseWriter, r *http.Request) {
	registry := chi.URLParam(r, "registry")
	seller := chi.URLParam(r, "seller")
	itemID, err := parseUint(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.RemoveListing(seller, registry, itemID); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetListing handles GET /api/v1/registries/{registry}/items/{itemID}/listings/{seller}
func (s *Service) GetListing(w http.ResponseWriter, r *http.Request) {
	registry := chi.URLParam(r, "registry")
	seller := chi.URLParam(r, "seller")
	itemID, err := parseUint(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.engine.GetListing(registry, itemID, seller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// --- Purchase handlers ---

// ExecuteBuy handles POST /api/v1/buy
func (s *Service) ExecuteBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Buyer == "" {
		writeError(w, "buyer is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Buy(req.Buyer, req.Registry, req.ItemID, req.Seller, req.Quantity); err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.TradesTotal.WithLabelValues("fixed").Inc()
	metrics.TradeLatency.WithLabelValues("fixed").Observe(time.Since(start).Seconds())
	metrics.ItemVolume.WithLabelValues(req.Registry, "fixed").Add(float64(req.Quantity))

	slog.Info("purchase executed",
		"buyer", req.Buyer,
		"seller", req.Seller,
		"registry", req.Registry,
		"item", req.ItemID,
		"quantity", req.Quantity,
	)

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// ExecuteBatchBuy handles POST /api/v1/buy/batch
// The whole batch succeeds or fails as one unit.
func (s *Service) ExecuteBatchBuy(w http.ResponseWriter, r *http.Request) {
	var req BatchBuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Buyer == "" {
		writeError(w, "buyer is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.BatchBuy(req.Buyer, req.Purchases); err != nil {
		writeEngineError(w, err)
		return
	}

	metrics.TradesTotal.WithLabelValues("fixed").Inc()
	metrics.TradeLatency.WithLabelValues("fixed").Observe(time.Since(start).Seconds())
	for _, p := range req.Purchases {
		metrics.ItemVolume.WithLabelValues(p.Registry, "fixed").Add(float64(p.Quantity))
	}

	slog.Info("batch purchase executed", "buyer", req.Buyer, "lines", len(req.Purchases))

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// --- Auction handlers ---

// CreateAuction handles POST /api/v1/auctions
func (s *Service) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Seller == "" {
		writeError(w, "seller is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.engine.CreateAuction(req.Seller, req.Registry, req.ItemID, req.Quantity,
		req.StartPrice, req.MinIncrement, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.ActiveAuctions.Inc()

	a, err := s.engine.GetAuction(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("auction created",
		"auction", id,
		"seller", req.Seller,
		"registry", req.Registry,
		"item", req.ItemID,
		"quantity", req.Quantity,
		"start_price", req.StartPrice.String(),
	)

	writeJSON(w, http.StatusCreated, a)
}

// GetAuction handles GET /api/v1/auctions/{auctionID}
func (s *Service) GetAuction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint(chi.URLParam(r, "auctionID"))
	if err != nil {
		writeError(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.engine.GetAuction(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// PlaceBid handles POST /api/v1/auctions/{auctionID}/bids
func (s *Service) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint(chi.URLParam(r, "auctionID"))
	if err != nil {
		writeError(w, "invalid auction id", http.StatusBadRequest)
		return
	}
	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Bidder == "" {
		writeError(w, "bidder is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.PlaceBid(req.Bidder, id, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.LockedFunds.Set(s.engine.LockedFunds().InexactFloat64())

	a, err := s.engine.GetAuction(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("bid placed",
		"auction", id,
		"bidder", req.Bidder,
		"amount", req.Amount.String(),
		"ends_at", a.EndTime,
	)

	writeJSON(w, http.StatusOK, a)
}

// SettleAuction handles POST /api/v1/auctions/{auctionID}/settle
// Anyone may settle an expired auction.
func (s *Service) SettleAuction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint(chi.URLParam(r, "auctionID"))
	if err != nil {
		writeError(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.SettleAuction(id); err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.ActiveAuctions.Dec()
	metrics.TradesTotal.WithLabelValues("auction").Inc()
	metrics.TradeLatency.WithLabelValues("auction").Observe(time.Since(start).Seconds())
	metrics.LockedFunds.Set(s.engine.LockedFunds().InexactFloat64())

	a, err := s.engine.GetAuction(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.ItemVolume.WithLabelValues(a.Registry, "auction").Add(float64(a.Quantity))

	slog.Info("auction settled",
		"auction", id,
		"winner", a.HighestBidder,
		"price", a.CurrentPrice.String(),
	)

	writeJSON(w, http.StatusOK, a)
}

// CancelAuction handles POST /api/v1/auctions/{auctionID}/cancel
func (s *Service) CancelAuction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint(chi.URLParam(r, "auctionID"))
	if err != nil {
		writeError(w, "invalid auction id", http.StatusBadRequest)
		return
	}
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.CancelAuction(req.Actor, id); err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.ActiveAuctions.Dec()

	slog.Info("auction cancelled", "auction", id, "seller", req.Actor)
	w.WriteHeader(http.StatusNoContent)
}

// --- Offer handlers ---

// MakeOffer handles POST /api/v1/offers
func (s *Service) MakeOffer(w http.ResponseWriter, r *http.Request) {
	var req MakeOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Buyer == "" {
		writeError(w, "buyer is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.engine.MakeOffer(req.Buyer, req.Registry, req.ItemID, req.Seller, req.Quantity, req.UnitPrice)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.PendingOffers.Inc()
	metrics.LockedFunds.Set(s.engine.LockedFunds().InexactFloat64())

	o, err := s.engine.GetOffer(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("offer created",
		"offer", id,
		"buyer", req.Buyer,
		"seller", req.Seller,
		"registry", req.Registry,
		"item", req.ItemID,
		"total", o.Total().String(),
	)

	writeJSON(w, http.StatusCreated, o)
}

// GetOffer handles GET /api/v1/offers/{offerID}
func (s *Service) GetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUint(chi.URLParam(r, "offerID"))
	if err != nil {
		writeError(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.engine.GetOffer(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// AcceptOffer handles POST /api/v1/offers/{offerID}/accept
func (s *Service) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	s.resolveOffer(w, r, "accept")
}

// RejectOffer handles POST /api/v1/offers/{offerID}/reject
func (s *Service) RejectOffer(w http.ResponseWriter, r *http.Request) {
	s.resolveOffer(w, r, "reject")
}

// CancelOffer handles POST /api/v1/offers/{offerID}/cancel
func (s *Service) CancelOffer(w http.ResponseWriter, r *http.Request) {
	s.resolveOffer(w, r, "cancel")
}

func (s *Service) resolveOffer(w http.ResponseWriter, r *http.Request, action string) {
	id, err := parseUint(chi.URLParam(r, "offerID"))
	if err != nil {
		writeError(w, "invalid offer id", http.StatusBadRequest)
		return
	}
	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case "accept":
		err = s.engine.AcceptOffer(req.Actor, id)
	case "reject":
		err = s.engine.RejectOffer(req.Actor, id)
	case "cancel":
		err = s.engine.CancelOffer(req.Actor, id)
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	metrics.PendingOffers.Dec()
	metrics.LockedFunds.Set(s.engine.LockedFunds().InexactFloat64())

	o, err := s.engine.GetOffer(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if action == "accept" {
		metrics.TradesTotal.WithLabelValues("offer").Inc()
		metrics.TradeLatency.WithLabelValues("offer").Observe(time.Since(start).Seconds())
		metrics.ItemVolume.WithLabelValues(o.Registry, "offer").Add(float64(o.Quantity))
	}

	slog.Info("offer resolved", "offer", id, "action", action, "actor", req.Actor)
	writeJSON(w, http.StatusOK, o)
}

// --- Helpers ---

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeEngineError maps engine sentinel errors onto HTTP statuses and
// records the rejection.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	reason := "internal"

	switch {
	case errors.Is(err, market.ErrInvalidArgument), errors.Is(err, market.ErrPageOutOfRange):
		status = http.StatusBadRequest
		reason = "invalid_argument"
	case errors.Is(err, market.ErrUnauthorized):
		status = http.StatusForbidden
		reason = "unauthorized"
	case errors.Is(err, market.ErrNotFound), errors.Is(err, market.ErrRegistryNotRegistered):
		status = http.StatusNotFound
		reason = "not_found"
	case errors.Is(err, market.ErrInvalidState):
		status = http.StatusConflict
		reason = "invalid_state"
	case errors.Is(err, market.ErrInsufficient):
		status = http.StatusConflict
		reason = "insufficient"
	case errors.Is(err, market.ErrReentrantCall):
		status = http.StatusConflict
		reason = "reentrant"
	}

	metrics.TradeRejections.WithLabelValues(reason).Inc()
	writeError(w, err.Error(), status)
}
