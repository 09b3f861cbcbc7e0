// Product/inventory persistence.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukaan-labs/dukaan/internal/domain"
)

// UpsertProduct inserts or updates a product by id.
func (d *DB) UpsertProduct(p domain.Product) error {
	_, err := d.db.Exec(`
		INSERT INTO products (id, name, category, unit, price, stock, low_stock_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name            = excluded.name,
			category        = excluded.category,
			unit            = excluded.unit,
			price           = excluded.price,
			stock           = excluded.stock,
			low_stock_level = excluded.low_stock_level,
			updated_at      = excluded.updated_at
	`, p.ID, p.Name, p.Category, p.Unit, p.PriceRupees, p.Stock, p.LowStockLevel,
		timeStr(p.CreatedAt), timeStr(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// GetProduct looks a product up by id. Returns (nil, nil) when absent.
func (d *DB) GetProduct(id string) (*domain.Product, error) {
	var (
		p                  domain.Product
		createdStr, updStr string
	)
	err := d.db.QueryRow(`
		SELECT id, name, category, unit, price, stock, low_stock_level, created_at, updated_at
		FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.Unit, &p.PriceRupees, &p.Stock,
		&p.LowStockLevel, &createdStr, &updStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if err := scanProductTimes(&p, createdStr, updStr); err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListProducts returns all products ordered by name.
func (d *DB) ListProducts() ([]domain.Product, error) {
	return d.queryProducts(`
		SELECT id, name, category, unit, price, stock, low_stock_level, created_at, updated_at
		FROM products ORDER BY name`)
}

// LowStockProducts returns products at or below their reorder level.
func (d *DB) LowStockProducts() ([]domain.Product, error) {
	return d.queryProducts(`
		SELECT id, name, category, unit, price, stock, low_stock_level, created_at, updated_at
		FROM products WHERE stock <= low_stock_level ORDER BY stock`)
}

// AdjustStock changes a product's stock by delta, refusing to go negative.
func (d *DB) AdjustStock(id string, delta int64) error {
	res, err := d.db.Exec(`
		UPDATE products
		SET stock = stock + ?, updated_at = ?
		WHERE id = ? AND stock + ? >= 0
	`, delta, timeStr(time.Now()), id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish a missing product from a refused decrement.
		p, gerr := d.GetProduct(id)
		if gerr != nil {
			return gerr
		}
		if p == nil {
			return domain.ErrProductNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

func (d *DB) queryProducts(query string) ([]domain.Product, error) {
	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var (
			p                  domain.Product
			createdStr, updStr string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Unit, &p.PriceRupees,
			&p.Stock, &p.LowStockLevel, &createdStr, &updStr); err != nil {
			return nil, err
		}
		if err := scanProductTimes(&p, createdStr, updStr); err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// scanProductTimes decodes the two stored timestamps onto the product.
func scanProductTimes(p *domain.Product, created, updated string) error {
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return err
	}
	p.UpdatedAt, err = parseTime(updated)
	return err
}
