package domain

import "time"

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.
//
// Lookup methods return (nil, nil) when the row does not exist — absence is
// a normal outcome here, and each service decides whether it is an error.

// CustomerStore abstracts customer persistence.
type CustomerStore interface {
	InsertCustomer(c Customer) error
	GetCustomer(phone string) (*Customer, error)
	ListCustomers() ([]Customer, error)

	// SaveScore persists a recalculated score, its derived limit, and the
	// recalculation timestamp in one write.
	SaveScore(phone string, score int, limit int64, at time.Time) error

	// AdjustOutstanding moves the active khata amount by delta (positive for
	// a new credit sale, negative for a payment) and raises the historical
	// maximum when the new balance exceeds it. The balance never goes below
	// zero.
	AdjustOutstanding(phone string, delta int64) error

	SetLastPayment(phone string, at time.Time) error
}

// LedgerStore abstracts ledger entry persistence.
type LedgerStore interface {
	InsertLedgerEntry(e LedgerEntry) error

	// LedgerEntries returns a customer's entries filtered by payment mode,
	// oldest first. An empty mode returns all entries.
	LedgerEntries(phone string, mode PaymentMode) ([]LedgerEntry, error)

	// PendingEntries returns unsettled entries of the given mode, oldest first.
	PendingEntries(phone string, mode PaymentMode) ([]LedgerEntry, error)

	// SettleEntry marks an entry paid at the given time.
	SettleEntry(id string, paidAt time.Time) error
}

// ProductStore abstracts inventory persistence.
type ProductStore interface {
	UpsertProduct(p Product) error
	GetProduct(id string) (*Product, error)
	ListProducts() ([]Product, error)
	LowStockProducts() ([]Product, error)

	// AdjustStock changes stock by delta. Fails with ErrInsufficientStock
	// when the adjustment would drive stock negative.
	AdjustStock(id string, delta int64) error
}

// BillStore abstracts bill persistence.
type BillStore interface {
	InsertBill(b Bill) error
	GetBill(id string) (*Bill, error)
}

// DealStore abstracts group-buy deal persistence.
type DealStore interface {
	InsertDeal(d Deal) error
	GetDeal(id string) (*Deal, error)
	ListDeals() ([]Deal, error)
	UpdateDeal(d Deal) error
}
