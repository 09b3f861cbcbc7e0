package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukaan-labs/dukaan/internal/app/billing"
	"github.com/dukaan-labs/dukaan/internal/domain"
)

// ─── Bill Handlers ──────────────────────────────────────────────────────────
//
// POST /api/bills      — create a bill (cash/UPI/card/khata)
// GET  /api/bills/{id} — one bill with its items

// handleCreateBill runs the POS flow.
func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billing.BillRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	bill, err := s.billing.CreateBill(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// handleGetBill returns a persisted bill.
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bill, err := s.store.GetBill(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bill == nil {
		writeDomainError(w, domain.ErrBillNotFound)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
