// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// ─── Customer Types ─────────────────────────────────────────────────────────

// Customer is a shop customer identified by phone number.
// The khata fields track the running store-credit account: what the
// customer currently owes, the worst it has ever been, and the credit
// score/limit maintained by the khata engine.
type Customer struct {
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`

	KhataScore               int        `json:"khata_score"`
	KhataLimit               int64      `json:"khata_limit"`
	ActiveKhataAmount        int64      `json:"active_khata_amount"`
	MaxHistoricalKhataAmount int64      `json:"max_historical_khata_amount"`
	LastPaymentDate          *time.Time `json:"last_payment_date,omitempty"`
	LastScoreUpdate          *time.Time `json:"last_score_update,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AvailableCredit returns how much more the customer may buy on khata.
// Never negative, even when the outstanding amount exceeds the limit.
func (c *Customer) AvailableCredit() int64 {
	avail := c.KhataLimit - c.ActiveKhataAmount
	if avail < 0 {
		return 0
	}
	return avail
}

// ─── Product Types ──────────────────────────────────────────────────────────

// Product is an inventory item.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	Unit          string    `json:"unit,omitempty"` // "kg", "pc", "ltr"
	PriceRupees   int64     `json:"price_rupees"`
	Stock         int64     `json:"stock"`
	LowStockLevel int64     `json:"low_stock_level"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LowStock reports whether the product is at or below its reorder level.
func (p *Product) LowStock() bool {
	return p.Stock <= p.LowStockLevel
}

// ─── Bill Types ─────────────────────────────────────────────────────────────

// BillItem is one line on a bill. UnitPrice is captured at sale time so
// later price edits do not rewrite history.
type BillItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// LineTotal returns quantity × unit price.
func (it BillItem) LineTotal() int64 {
	return it.Quantity * it.UnitPrice
}

// Bill is a completed point-of-sale transaction.
type Bill struct {
	ID            string      `json:"id"`
	CustomerPhone string      `json:"customer_phone,omitempty"`
	Items         []BillItem  `json:"items"`
	TotalRupees   int64       `json:"total_rupees"`
	PaymentMode   PaymentMode `json:"payment_mode"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Total sums the line totals. Stored TotalRupees must always match.
func (b *Bill) Total() int64 {
	var total int64
	for _, it := range b.Items {
		total += it.LineTotal()
	}
	return total
}

// ─── Group-Buy Deal Types ───────────────────────────────────────────────────

// DealStatus is the lifecycle state of a group-buy deal.
type DealStatus string

const (
	DealOpen    DealStatus = "OPEN"
	DealClosed  DealStatus = "CLOSED"  // Target quantity reached
	DealExpired DealStatus = "EXPIRED" // Deadline passed before target
)

// Deal is a group-buy offer: a discounted price on a product that
// activates once enough customers commit to a combined quantity.
type Deal struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	Title           string     `json:"title"`
	DealPriceRupees int64      `json:"deal_price_rupees"`
	TargetQty       int64      `json:"target_qty"`
	JoinedQty       int64      `json:"joined_qty"`
	Status          DealStatus `json:"status"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ProgressPct returns how close the deal is to its target, in [0, 100].
func (d *Deal) ProgressPct() float64 {
	if d.TargetQty <= 0 {
		return 0
	}
	pct := float64(d.JoinedQty) / float64(d.TargetQty) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// EffectiveStatus resolves an OPEN deal against the clock: a deal past
// its deadline reads as EXPIRED even before a writer has marked it.
func (d *Deal) EffectiveStatus(now time.Time) DealStatus {
	if d.Status == DealOpen && now.After(d.ExpiresAt) {
		return DealExpired
	}
	return d.Status
}

// ─── Utilities ──────────────────────────────────────────────────────────────

// Rupees formats an amount for display ("₹1,234" omitted — plain form).
func Rupees(amount int64) string {
	return fmt.Sprintf("Rs %d", amount)
}
