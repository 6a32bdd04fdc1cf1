package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/curio/marketplace-engine/internal/event"
	"github.com/curio/marketplace-engine/internal/model"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
	defaultFeedLimit = 100
)

// page is the JSON envelope for paginated query responses. Total counts
// every matching entry, not just the returned page.
type page struct {
	Items  any    `json:"items"`
	Total  uint64 `json:"total"`
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// pageParams reads offset and limit query parameters with bounds.
func pageParams(r *http.Request) (offset, limit uint64) {
	offset, _ = strconv.ParseUint(r.URL.Query().Get("offset"), 10, 64)
	limit = defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			limit = parsed
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit
}

// ListRegistries handles GET /api/v1/registries
func (s *Service) ListRegistries(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	names, total, err := s.engine.Registries(offset, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, page{Items: names, Total: total, Offset: offset, Limit: limit})
}

// ListingsByOwner handles GET /api/v1/accounts/{account}/listings
func (s *Service) ListingsByOwner(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	offset, limit := pageParams(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	listings, total, err := s.engine.ListingsByOwner(account, offset, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	writeJSON(w, http.StatusOK, page{Items: listings, Total: total, Offset: offset, Limit: limit})
}

// OffersByItem handles GET /api/v1/registries/{registry}/items/{itemID}/offers
func (s *Service) OffersByItem(w http.ResponseWriter, r *http.Request) {
	registry := chi.URLParam(r, "registry")
	itemID, err := parseUint(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}
	offset, limit := pageParams(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	offers, total, err := s.engine.OffersByItem(registry, itemID, offset, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	writeJSON(w, http.StatusOK, page{Items: offers, Total: total, Offset: offset, Limit: limit})
}

// OffersByAccount handles GET /api/v1/accounts/{account}/offers
// The role query parameter selects the account's side: "buyer" (default)
// or "seller".
func (s *Service) OffersByAccount(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	offset, limit := pageParams(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		offers []model.Offer
		total  uint64
		err    error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "", "buyer":
		offers, total, err = s.engine.OffersByBuyer(account, offset, limit)
	case "seller":
		offers, total, err = s.engine.OffersBySeller(account, offset, limit)
	default:
		writeError(w, "role must be buyer or seller", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	writeJSON(w, http.StatusOK, page{Items: offers, Total: total, Offset: offset, Limit: limit})
}

// --- Trade feed ---

func feedLimit(r *http.Request) int {
	limit := defaultFeedLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= maxPageLimit {
			limit = parsed
		}
	}
	return limit
}

// RecentFeed handles GET /api/v1/feed
func (s *Service) RecentFeed(w http.ResponseWriter, r *http.Request) {
	events, err := s.journal.Recent(r.Context(), feedLimit(r))
	if err != nil {
		writeError(w, "failed to read feed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ItemFeed handles GET /api/v1/registries/{registry}/items/{itemID}/feed
func (s *Service) ItemFeed(w http.ResponseWriter, r *http.Request) {
	registry := chi.URLParam(r, "registry")
	itemID, err := parseUint(chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, "invalid item id", http.StatusBadRequest)
		return
	}

	events, err := s.journal.ByItem(r.Context(), registry, itemID, feedLimit(r))
	if err != nil {
		writeError(w, "failed to read feed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// AccountFeed handles GET /api/v1/accounts/{account}/feed
func (s *Service) AccountFeed(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	events, err := s.journal.ByAccount(r.Context(), account, feedLimit(r))
	if err != nil {
		writeError(w, "failed to read feed", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
