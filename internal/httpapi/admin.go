package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// RegisterRegistryRequest is the JSON body for POST /admin/registries.
type RegisterRegistryRequest struct {
	Caller   string `json:"caller"`
	Registry string `json:"registry"`
}

// SetFeesRequest is the JSON body for POST /admin/fees.
type SetFeesRequest struct {
	Caller               string `json:"caller"`
	PrimaryFeePerMille   int64  `json:"primary_fee_per_mille"`
	SecondaryFeePerMille int64  `json:"secondary_fee_per_mille"`
}

// SetAuctionBoundsRequest is the JSON body for POST /admin/auction-bounds.
type SetAuctionBoundsRequest struct {
	Caller             string `json:"caller"`
	MinDurationSeconds int64  `json:"min_duration_seconds"`
	MaxDurationSeconds int64  `json:"max_duration_seconds"`
}

// SetSnipeWindowRequest is the JSON body for POST /admin/snipe-window.
type SetSnipeWindowRequest struct {
	Caller        string `json:"caller"`
	WindowSeconds int64  `json:"window_seconds"`
}

// WithdrawRequest is the JSON body for POST /admin/withdraw.
type WithdrawRequest struct {
	Caller string          `json:"caller"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// RegisterRegistry handles POST /api/v1/admin/registries
func (s *Service) RegisterRegistry(w http.ResponseWriter, r *http.Request) {
	var req RegisterRegistryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.RegisterRegistry(req.Caller, req.Registry); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("registry registered", "registry", req.Registry, "by", req.Caller)
	writeJSON(w, http.StatusCreated, map[string]string{"registry": req.Registry})
}

// SetFees handles POST /api/v1/admin/fees
func (s *Service) SetFees(w http.ResponseWriter, r *http.Request) {
	var req SetFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.SetFeeRates(req.Caller, req.PrimaryFeePerMille, req.SecondaryFeePerMille); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("fee rates updated",
		"primary_per_mille", req.PrimaryFeePerMille,
		"secondary_per_mille", req.SecondaryFeePerMille,
		"by", req.Caller,
	)
	w.WriteHeader(http.StatusNoContent)
}

// SetAuctionBounds handles POST /api/v1/admin/auction-bounds
func (s *Service) SetAuctionBounds(w http.ResponseWriter, r *http.Request) {
	var req SetAuctionBoundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	min := time.Duration(req.MinDurationSeconds) * time.Second
	max := time.Duration(req.MaxDurationSeconds) * time.Second
	if err := s.engine.SetAuctionBounds(req.Caller, min, max); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("auction bounds updated", "min", min, "max", max, "by", req.Caller)
	w.WriteHeader(http.StatusNoContent)
}

// SetSnipeWindow handles POST /api/v1/admin/snipe-window
func (s *Service) SetSnipeWindow(w http.ResponseWriter, r *http.Request) {
	var req SetSnipeWindowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	window := time.Duration(req.WindowSeconds) * time.Second
	if err := s.engine.SetSnipeWindow(req.Caller, window); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("snipe window updated", "window", window, "by", req.Caller)
	w.WriteHeader(http.StatusNoContent)
}

// Withdraw handles POST /api/v1/admin/withdraw
func (s *Service) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.WithdrawRevenue(req.Caller, req.To, req.Amount); err != nil {
		writeEngineError(w, err)
		return
	}

	slog.Info("revenue withdrawn", "to", req.To, "amount", req.Amount.String(), "by", req.Caller)
	writeJSON(w, http.StatusOK, map[string]string{
		"withdrawn": req.Amount.String(),
		"remaining": s.engine.AvailableRevenue().String(),
	})
}

// Revenue handles GET /api/v1/admin/revenue
func (s *Service) Revenue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"available": s.engine.AvailableRevenue().String(),
		"locked":    s.engine.LockedFunds().String(),
	})
}
