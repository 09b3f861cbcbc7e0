// Bill persistence. A bill and its line items are written in one
// transaction so a crash cannot leave a headerless item row.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukaan-labs/dukaan/internal/domain"
)

// InsertBill writes the bill header and all line items atomically.
func (d *DB) InsertBill(b domain.Bill) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("begin bill tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO bills (id, customer_phone, total, payment_mode, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.CustomerPhone, b.TotalRupees, string(b.PaymentMode), timeStr(b.CreatedAt)); err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}

	for _, it := range b.Items {
		if _, err := tx.Exec(`
			INSERT INTO bill_items (bill_id, product_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)
		`, b.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("insert bill item: %w", err)
		}
	}

	return tx.Commit()
}

// GetBill loads a bill with its items. Returns (nil, nil) when absent.
func (d *DB) GetBill(id string) (*domain.Bill, error) {
	var (
		b          domain.Bill
		mode       string
		createdStr string
	)
	err := d.db.QueryRow(`
		SELECT id, customer_phone, total, payment_mode, created_at
		FROM bills WHERE id = ?
	`, id).Scan(&b.ID, &b.CustomerPhone, &b.TotalRupees, &mode, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	b.PaymentMode = domain.PaymentMode(mode)
	if b.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	rows, err := d.db.Query(`
		SELECT product_id, product_name, quantity, unit_price
		FROM bill_items WHERE bill_id = ? ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get bill items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.BillItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		b.Items = append(b.Items, it)
	}
	return &b, rows.Err()
}
