package domain

import "time"

// ─── Ledger Types ───────────────────────────────────────────────────────────
// These live in domain because they represent core business rules.
// Only KHATA-mode entries participate in credit scoring.

// PaymentMode is how a bill was settled at the counter.
type PaymentMode string

const (
	PayCash  PaymentMode = "CASH"
	PayUPI   PaymentMode = "UPI"
	PayCard  PaymentMode = "CARD"
	PayKhata PaymentMode = "KHATA" // Bought on store credit
)

// ValidPaymentMode reports whether m is one of the accepted modes.
func ValidPaymentMode(m PaymentMode) bool {
	switch m {
	case PayCash, PayUPI, PayCard, PayKhata:
		return true
	}
	return false
}

// EntryStatus is the settlement state of a ledger entry.
type EntryStatus string

const (
	EntryPending EntryStatus = "PENDING"
	EntryPaid    EntryStatus = "PAID"
)

// LedgerEntry is a single row in a customer's ledger. For KHATA entries,
// CreatedAt is when the credit was extended and PaidAt when it was settled
// (nil while pending).
type LedgerEntry struct {
	ID            string      `json:"id"`
	CustomerPhone string      `json:"customer_phone"`
	BillID        string      `json:"bill_id,omitempty"`
	AmountRupees  int64       `json:"amount_rupees"`
	PaymentMode   PaymentMode `json:"payment_mode"`
	Status        EntryStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
}

// Paid reports whether the entry has been settled.
func (e *LedgerEntry) Paid() bool {
	return e.Status == EntryPaid && e.PaidAt != nil
}

// DaysToPay returns how many days the entry took to settle.
// Returns -1 for entries that are still pending.
func (e *LedgerEntry) DaysToPay() float64 {
	if !e.Paid() {
		return -1
	}
	return e.PaidAt.Sub(e.CreatedAt).Hours() / 24
}
