// Group-buy deal persistence.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukaan-labs/dukaan/internal/domain"
)

// InsertDeal adds a new deal.
func (d *DB) InsertDeal(deal domain.Deal) error {
	_, err := d.db.Exec(`
		INSERT INTO deals (id, product_id, title, deal_price, target_qty, joined_qty, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, deal.ID, deal.ProductID, deal.Title, deal.DealPriceRupees, deal.TargetQty,
		deal.JoinedQty, string(deal.Status), timeStr(deal.ExpiresAt), timeStr(deal.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

// GetDeal looks a deal up by id. Returns (nil, nil) when absent.
func (d *DB) GetDeal(id string) (*domain.Deal, error) {
	var (
		deal                           domain.Deal
		status, expiresStr, createdStr string
	)
	err := d.db.QueryRow(`
		SELECT id, product_id, title, deal_price, target_qty, joined_qty, status, expires_at, created_at
		FROM deals WHERE id = ?
	`, id).Scan(&deal.ID, &deal.ProductID, &deal.Title, &deal.DealPriceRupees,
		&deal.TargetQty, &deal.JoinedQty, &status, &expiresStr, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	deal.Status = domain.DealStatus(status)
	if err := scanDealTimes(&deal, expiresStr, createdStr); err != nil {
		return nil, fmt.Errorf("get deal: %w", err)
	}
	return &deal, nil
}

// ListDeals returns all deals, newest first.
func (d *DB) ListDeals() ([]domain.Deal, error) {
	rows, err := d.db.Query(`
		SELECT id, product_id, title, deal_price, target_qty, joined_qty, status, expires_at, created_at
		FROM deals ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var out []domain.Deal
	for rows.Next() {
		var (
			deal                           domain.Deal
			status, expiresStr, createdStr string
		)
		if err := rows.Scan(&deal.ID, &deal.ProductID, &deal.Title, &deal.DealPriceRupees,
			&deal.TargetQty, &deal.JoinedQty, &status, &expiresStr, &createdStr); err != nil {
			return nil, err
		}
		deal.Status = domain.DealStatus(status)
		if err := scanDealTimes(&deal, expiresStr, createdStr); err != nil {
			return nil, fmt.Errorf("list deals: %w", err)
		}
		out = append(out, deal)
	}
	return out, rows.Err()
}

// scanDealTimes decodes the two stored timestamps onto the deal.
func scanDealTimes(deal *domain.Deal, expires, created string) error {
	var err error
	if deal.ExpiresAt, err = parseTime(expires); err != nil {
		return err
	}
	deal.CreatedAt, err = parseTime(created)
	return err
}

// UpdateDeal rewrites a deal's mutable fields (joined quantity, status).
func (d *DB) UpdateDeal(deal domain.Deal) error {
	res, err := d.db.Exec(`
		UPDATE deals SET joined_qty = ?, status = ? WHERE id = ?
	`, deal.JoinedQty, string(deal.Status), deal.ID)
	if err != nil {
		return fmt.Errorf("update deal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDealNotFound
	}
	return nil
}
