// Ledger entry persistence. KHATA-mode entries are the raw material for
// credit scoring; CASH/UPI/CARD entries are kept for the customer's
// transaction history.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukaan-labs/dukaan/internal/domain"
)

// InsertLedgerEntry adds a ledger entry.
func (d *DB) InsertLedgerEntry(e domain.LedgerEntry) error {
	_, err := d.db.Exec(`
		INSERT INTO ledger_entries (id, customer_phone, bill_id, amount, payment_mode, status, created_at, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.CustomerPhone, e.BillID, e.AmountRupees, string(e.PaymentMode),
		string(e.Status), timeStr(e.CreatedAt), nullableTime(e.PaidAt))
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// LedgerEntries returns a customer's entries oldest first, optionally
// filtered by payment mode (empty mode = all).
func (d *DB) LedgerEntries(phone string, mode domain.PaymentMode) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, customer_phone, bill_id, amount, payment_mode, status, created_at, paid_at
		FROM ledger_entries WHERE customer_phone = ?`
	args := []any{phone}
	if mode != "" {
		query += ` AND payment_mode = ?`
		args = append(args, string(mode))
	}
	query += ` ORDER BY created_at, id`

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// PendingEntries returns unsettled entries of the given mode, oldest first.
func (d *DB) PendingEntries(phone string, mode domain.PaymentMode) ([]domain.LedgerEntry, error) {
	rows, err := d.db.Query(`
		SELECT id, customer_phone, bill_id, amount, payment_mode, status, created_at, paid_at
		FROM ledger_entries
		WHERE customer_phone = ? AND payment_mode = ? AND status = ?
		ORDER BY created_at, id
	`, phone, string(mode), string(domain.EntryPending))
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// SettleEntry marks a pending entry as paid.
func (d *DB) SettleEntry(id string, paidAt time.Time) error {
	res, err := d.db.Exec(`
		UPDATE ledger_entries SET status = ?, paid_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.EntryPaid), timeStr(paidAt), id, string(domain.EntryPending))
	if err != nil {
		return fmt.Errorf("settle entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNothingToSettle
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for rows.Next() {
		var (
			e                     domain.LedgerEntry
			mode, status, created string
			paidAt                sql.NullString
			err                   error
		)
		if err = rows.Scan(&e.ID, &e.CustomerPhone, &e.BillID, &e.AmountRupees,
			&mode, &status, &created, &paidAt); err != nil {
			return nil, err
		}
		e.PaymentMode = domain.PaymentMode(mode)
		e.Status = domain.EntryStatus(status)
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", e.ID, err)
		}
		if e.PaidAt, err = scanNullableTime(paidAt); err != nil {
			return nil, fmt.Errorf("ledger entry %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
