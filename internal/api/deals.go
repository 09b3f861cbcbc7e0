package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukaan-labs/dukaan/internal/app/deals"
)

// ─── Deal Handlers ──────────────────────────────────────────────────────────
//
// POST /api/deals           — open a group-buy deal
// GET  /api/deals           — list deals with live status
// POST /api/deals/{id}/join — commit a quantity to a deal

// handleCreateDeal opens a new group-buy deal.
func (s *Server) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	var req deals.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	deal, err := s.deals.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deal)
}

// handleListDeals returns all deals.
func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	all, err := s.deals.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deals": all,
		"count": len(all),
	})
}

type joinDealRequest struct {
	Quantity int64 `json:"quantity"`
}

// handleJoinDeal commits a quantity to an open deal.
func (s *Server) handleJoinDeal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req joinDealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	deal, err := s.deals.Join(r.Context(), id, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}
