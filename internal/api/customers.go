package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukaan-labs/dukaan/internal/app/khata"
	"github.com/dukaan-labs/dukaan/internal/domain"
)

// ─── Customer Handlers ──────────────────────────────────────────────────────
//
// POST /api/customers                          — register a customer
// GET  /api/customers                          — list customers
// GET  /api/customers/{phone}                  — one customer with aggregates
// GET  /api/customers/{phone}/khata            — credit status + explanation
// POST /api/customers/{phone}/khata/recalculate — force a score recalculation
// GET  /api/customers/{phone}/ledger           — ledger history (?mode=KHATA)
// POST /api/customers/{phone}/payments         — record a khata payment

type createCustomerRequest struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
}

// handleCreateCustomer registers a new customer.
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PhoneNumber == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "phone_number and name are required")
		return
	}

	cust := domain.Customer{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Address:     req.Address,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertCustomer(cust); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cust)
}

// handleListCustomers returns all customers.
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.store.ListCustomers()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"customers": customers,
		"count":     len(customers),
	})
}

// handleGetCustomer returns one customer.
func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	cust, err := s.store.GetCustomer(phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if cust == nil {
		writeDomainError(w, domain.ErrCustomerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cust)
}

// handleKhataStatus returns the customer's credit status with reasons.
func (s *Server) handleKhataStatus(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	status, err := s.engine.Status(r.Context(), phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRecalculate forces a score recalculation.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")

	// A recalculation should only 404 for genuinely unknown customers.
	cust, err := s.store.GetCustomer(phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if cust == nil {
		writeDomainError(w, domain.ErrCustomerNotFound)
		return
	}

	score, err := s.engine.Recalculate(r.Context(), phone)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"phone_number": phone,
		"score":        score,
		"limit":        khata.CalculateLimit(score),
	})
}

// handleLedger returns the customer's ledger entries, optionally filtered
// by payment mode.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	mode := domain.PaymentMode(r.URL.Query().Get("mode"))
	if mode != "" && !domain.ValidPaymentMode(mode) {
		writeDomainError(w, domain.ErrInvalidPaymentMode)
		return
	}

	entries, err := s.store.LedgerEntries(phone, mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

type paymentRequest struct {
	AmountRupees int64 `json:"amount_rupees"`
}

// handleRecordPayment records a khata repayment.
func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.billing.RecordPayment(r.Context(), phone, req.AmountRupees)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
