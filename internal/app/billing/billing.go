// Package billing implements point-of-sale bill creation and khata
// payment settlement.
//
// A bill:
//  1. Validates items and payment mode
//  2. Resolves each product and checks stock
//  3. For KHATA mode, checks the customer's available credit
//  4. Decrements stock, writes the bill and (for KHATA) a pending ledger entry
//  5. Triggers a score recalculation for KHATA customers
//
// Score-affecting operations for one customer are serialized through a
// sharded keyed mutex: sqlite gives per-statement atomicity, but the
// read-compute-write of a recalculation spans several statements.
package billing

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukaan-labs/dukaan/internal/app/khata"
	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/observability"
)

// ─── Per-Customer Locking ───────────────────────────────────────────────────

// phoneMutex is a fixed-size pool of mutexes keyed by phone number.
// Bounded memory regardless of how many customers are seen, at the cost of
// occasional false sharing between phones that hash to the same shard.
type phoneMutex struct {
	shards [64]sync.Mutex
}

// lock acquires the mutex for the given phone and returns an unlock func.
func (p *phoneMutex) lock(phone string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(phone))
	mu := &p.shards[h.Sum32()%uint32(len(p.shards))]
	mu.Lock()
	return mu.Unlock
}

// ─── Service ────────────────────────────────────────────────────────────────

// Store is the persistence surface billing needs.
type Store interface {
	GetCustomer(phone string) (*domain.Customer, error)
	AdjustOutstanding(phone string, delta int64) error
	SetLastPayment(phone string, at time.Time) error

	GetProduct(id string) (*domain.Product, error)
	AdjustStock(id string, delta int64) error

	InsertBill(b domain.Bill) error
	InsertLedgerEntry(e domain.LedgerEntry) error
	PendingEntries(phone string, mode domain.PaymentMode) ([]domain.LedgerEntry, error)
	SettleEntry(id string, paidAt time.Time) error
}

// Service creates bills and settles khata payments.
type Service struct {
	store  Store
	engine *khata.Engine
	locks  phoneMutex

	// Injectable clock for testing.
	now func() time.Time
}

// NewService creates a billing service.
func NewService(store Store, engine *khata.Engine) *Service {
	return &Service{store: store, engine: engine, now: time.Now}
}

// ─── Bill Creation ──────────────────────────────────────────────────────────

// BillItemRequest is one requested line on a new bill.
type BillItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

// BillRequest is a validated request to create a bill.
type BillRequest struct {
	CustomerPhone string             `json:"customer_phone,omitempty"`
	PaymentMode   domain.PaymentMode `json:"payment_mode"`
	Items         []BillItemRequest  `json:"items"`
}

// CreateBill runs the full POS flow and returns the persisted bill.
func (s *Service) CreateBill(ctx context.Context, req BillRequest) (*domain.Bill, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyBill
	}
	if !domain.ValidPaymentMode(req.PaymentMode) {
		return nil, domain.ErrInvalidPaymentMode
	}

	// Resolve products up front so a mid-bill failure cannot half-build
	// the item list.
	items := make([]domain.BillItem, 0, len(req.Items))
	var total int64
	for _, ir := range req.Items {
		if ir.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity %d for product %s", domain.ErrInvalidAmount, ir.Quantity, ir.ProductID)
		}
		p, err := s.store.GetProduct(ir.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, ir.ProductID)
		}
		if p.Stock < ir.Quantity {
			return nil, fmt.Errorf("%w: %s has %d, need %d", domain.ErrInsufficientStock, p.Name, p.Stock, ir.Quantity)
		}
		items = append(items, domain.BillItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    ir.Quantity,
			UnitPrice:   p.PriceRupees,
		})
		total += ir.Quantity * p.PriceRupees
	}

	if req.PaymentMode == domain.PayKhata {
		return s.createKhataBill(ctx, req.CustomerPhone, items, total)
	}
	return s.finishBill(ctx, req.CustomerPhone, req.PaymentMode, items, total)
}

// createKhataBill holds the customer's lock across the credit check, the
// bill write, and the recalculation.
func (s *Service) createKhataBill(ctx context.Context, phone string, items []domain.BillItem, total int64) (*domain.Bill, error) {
	if phone == "" {
		return nil, domain.ErrCustomerNotFound
	}
	unlock := s.locks.lock(phone)
	defer unlock()

	cust, err := s.store.GetCustomer(phone)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, domain.ErrCustomerNotFound
	}
	// The effective limit treats a never-scored customer as carrying the
	// default score, so a first khata purchase is possible at all.
	if avail := khata.EffectiveCredit(cust); total > avail {
		return nil, fmt.Errorf("%w: need %d, available %d",
			domain.ErrCreditLimitExceeded, total, avail)
	}

	bill, err := s.finishBill(ctx, phone, domain.PayKhata, items, total)
	if err != nil {
		return nil, err
	}

	if err := s.store.AdjustOutstanding(phone, total); err != nil {
		return nil, err
	}
	if _, err := s.engine.Recalculate(ctx, phone); err != nil {
		// The sale already happened; a scoring failure must not unwind it.
		log.Printf("billing: recalculate after bill %s: %v", bill.ID, err)
	}
	return bill, nil
}

// finishBill decrements stock, persists the bill, and writes the ledger
// entry recording how it was paid.
func (s *Service) finishBill(ctx context.Context, phone string, mode domain.PaymentMode, items []domain.BillItem, total int64) (*domain.Bill, error) {
	now := s.now()
	for _, it := range items {
		if err := s.store.AdjustStock(it.ProductID, -it.Quantity); err != nil {
			return nil, err
		}
	}

	bill := domain.Bill{
		ID:            uuid.NewString(),
		CustomerPhone: phone,
		Items:         items,
		TotalRupees:   total,
		PaymentMode:   mode,
		CreatedAt:     now,
	}
	if err := s.store.InsertBill(bill); err != nil {
		return nil, err
	}
	observability.BillsCreated.WithLabelValues(string(mode)).Inc()
	observability.BillValue.Observe(float64(total))

	if phone != "" {
		entry := domain.LedgerEntry{
			ID:            uuid.NewString(),
			CustomerPhone: phone,
			BillID:        bill.ID,
			AmountRupees:  total,
			PaymentMode:   mode,
			Status:        domain.EntryPaid,
			CreatedAt:     now,
			PaidAt:        &now,
		}
		if mode == domain.PayKhata {
			entry.Status = domain.EntryPending
			entry.PaidAt = nil
		}
		if err := s.store.InsertLedgerEntry(entry); err != nil {
			return nil, err
		}
	}
	return &bill, nil
}

// ─── Payment Settlement ─────────────────────────────────────────────────────

// PaymentResult reports what a khata payment settled.
type PaymentResult struct {
	AmountRupees   int64 `json:"amount_rupees"`
	EntriesSettled int   `json:"entries_settled"`

	// UnappliedRupees is the part of the payment too small to cover the
	// next pending entry. It still reduced the outstanding balance; the
	// entry it partly covered stays pending in full.
	UnappliedRupees int64 `json:"unapplied_rupees"`

	NewScore int `json:"new_score"`
}

// RecordPayment settles pending khata entries oldest-first until the paid
// amount is used up, updates the customer aggregates, and recalculates the
// score. A partial payment settles whole entries only; the remainder of a
// partially covered entry stays pending.
func (s *Service) RecordPayment(ctx context.Context, phone string, amount int64) (*PaymentResult, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	unlock := s.locks.lock(phone)
	defer unlock()

	cust, err := s.store.GetCustomer(phone)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, domain.ErrCustomerNotFound
	}

	pending, err := s.store.PendingEntries(phone, domain.PayKhata)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, domain.ErrNothingToSettle
	}

	now := s.now()
	remaining := amount
	settled := 0
	for _, e := range pending {
		if remaining < e.AmountRupees {
			break
		}
		if err := s.store.SettleEntry(e.ID, now); err != nil {
			return nil, err
		}
		remaining -= e.AmountRupees
		settled++
	}

	if err := s.store.AdjustOutstanding(phone, -amount); err != nil {
		return nil, err
	}
	if err := s.store.SetLastPayment(phone, now); err != nil {
		return nil, err
	}

	score, err := s.engine.Recalculate(ctx, phone)
	if err != nil {
		log.Printf("billing: recalculate after payment from %s: %v", phone, err)
		score = cust.KhataScore
	}

	observability.PaymentsRecorded.Inc()
	return &PaymentResult{
		AmountRupees:    amount,
		EntriesSettled:  settled,
		UnappliedRupees: remaining,
		NewScore:        score,
	}, nil
}
