package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dukaan-labs/dukaan/internal/domain"
)

// ─── Inventory Handlers ─────────────────────────────────────────────────────
//
// PUT /api/products           — create or update a product
// GET /api/products           — full catalog
// GET /api/products/low-stock — products at or below their reorder level
// GET /api/products/{id}      — one product

type upsertProductRequest struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	Unit          string `json:"unit,omitempty"`
	PriceRupees   int64  `json:"price_rupees"`
	Stock         int64  `json:"stock"`
	LowStockLevel int64  `json:"low_stock_level"`
}

// handleUpsertProduct creates or updates a product. An empty id creates a
// new product.
func (s *Server) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || req.PriceRupees <= 0 || req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "name and a positive price are required")
		return
	}

	now := s.now().UTC()
	p := domain.Product{
		ID:            req.ID,
		Name:          req.Name,
		Category:      req.Category,
		Unit:          req.Unit,
		PriceRupees:   req.PriceRupees,
		Stock:         req.Stock,
		LowStockLevel: req.LowStockLevel,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	status := http.StatusOK
	if p.ID == "" {
		p.ID = uuid.NewString()
		status = http.StatusCreated
	}

	if err := s.store.UpsertProduct(p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, p)
}

// handleListProducts returns the catalog.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// handleLowStock returns products at or below their reorder level.
func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.LowStockProducts()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"count":    len(products),
	})
}

// handleGetProduct returns one product.
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProduct(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if p == nil {
		writeDomainError(w, domain.ErrProductNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
