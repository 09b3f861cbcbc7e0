// Package deals implements group-buy deals: a discounted price on a
// product that activates once enough customers commit to a combined
// quantity before the deadline.
package deals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/observability"
)

// Service manages deal lifecycle. Joins for the same deal are serialized
// with a single mutex — deal traffic in a one-shop deployment is tiny.
type Service struct {
	mu    sync.Mutex
	store domain.DealStore
	prods domain.ProductStore

	// Injectable clock for testing.
	now func() time.Time
}

// NewService creates a deals service.
func NewService(store domain.DealStore, prods domain.ProductStore) *Service {
	return &Service{store: store, prods: prods, now: time.Now}
}

// CreateRequest is a validated request to open a deal.
type CreateRequest struct {
	ProductID       string `json:"product_id"`
	Title           string `json:"title"`
	DealPriceRupees int64  `json:"deal_price_rupees"`
	TargetQty       int64  `json:"target_qty"`
	DurationHours   int    `json:"duration_hours"`
}

// Create opens a new deal on an existing product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Deal, error) {
	if req.DealPriceRupees <= 0 || req.TargetQty <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.DurationHours <= 0 {
		req.DurationHours = 72
	}

	p, err := s.prods.GetProduct(req.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.ProductID)
	}

	now := s.now()
	deal := domain.Deal{
		ID:              uuid.NewString(),
		ProductID:       p.ID,
		Title:           req.Title,
		DealPriceRupees: req.DealPriceRupees,
		TargetQty:       req.TargetQty,
		Status:          domain.DealOpen,
		ExpiresAt:       now.Add(time.Duration(req.DurationHours) * time.Hour),
		CreatedAt:       now,
	}
	if deal.Title == "" {
		deal.Title = p.Name + " group buy"
	}
	if err := s.store.InsertDeal(deal); err != nil {
		return nil, err
	}
	return &deal, nil
}

// Join commits a quantity to an open deal. Reaching the target closes the
// deal; joining a closed or expired deal fails with ErrDealClosed.
func (s *Service) Join(ctx context.Context, dealID string, qty int64) (*domain.Deal, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deal, err := s.store.GetDeal(dealID)
	if err != nil {
		return nil, err
	}
	if deal == nil {
		return nil, domain.ErrDealNotFound
	}
	if deal.EffectiveStatus(s.now()) != domain.DealOpen {
		return nil, domain.ErrDealClosed
	}

	deal.JoinedQty += qty
	if deal.JoinedQty >= deal.TargetQty {
		deal.Status = domain.DealClosed
	}
	if err := s.store.UpdateDeal(*deal); err != nil {
		return nil, err
	}
	observability.DealJoins.Inc()
	return deal, nil
}

// List returns all deals with expiry resolved against the clock.
func (s *Service) List(ctx context.Context) ([]domain.Deal, error) {
	deals, err := s.store.ListDeals()
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range deals {
		deals[i].Status = deals[i].EffectiveStatus(now)
	}
	return deals, nil
}
