package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Customer errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerExists   = errors.New("customer already exists")

	// Billing errors
	ErrEmptyBill           = errors.New("bill must contain at least one item")
	ErrInvalidPaymentMode  = errors.New("invalid payment mode")
	ErrCreditLimitExceeded = errors.New("khata credit limit exceeded")
	ErrBillNotFound        = errors.New("bill not found")

	// Inventory errors
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")

	// Deal errors
	ErrDealNotFound = errors.New("deal not found")
	ErrDealClosed   = errors.New("deal is no longer open")

	// Ledger errors
	ErrNothingToSettle = errors.New("no pending khata entries to settle")
	ErrInvalidAmount   = errors.New("amount must be positive")
)
