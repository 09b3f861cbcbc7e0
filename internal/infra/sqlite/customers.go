// Customer persistence, including the khata aggregates the score engine
// reads and writes.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukaan-labs/dukaan/internal/domain"
)

// InsertCustomer adds a new customer. Fails with ErrCustomerExists when the
// phone number is already registered.
func (d *DB) InsertCustomer(c domain.Customer) error {
	_, err := d.db.Exec(`
		INSERT INTO customers (phone_number, name, address, khata_score, khata_limit,
			active_khata_amount, max_historical_khata_amount,
			last_payment_date, last_score_update, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.PhoneNumber, c.Name, c.Address, c.KhataScore, c.KhataLimit,
		c.ActiveKhataAmount, c.MaxHistoricalKhataAmount,
		nullableTime(c.LastPaymentDate), nullableTime(c.LastScoreUpdate), timeStr(c.CreatedAt))
	if err != nil {
		var exists int
		if qerr := d.db.QueryRow(`SELECT COUNT(*) FROM customers WHERE phone_number = ?`,
			c.PhoneNumber).Scan(&exists); qerr == nil && exists > 0 {
			return domain.ErrCustomerExists
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

// GetCustomer looks a customer up by phone. Returns (nil, nil) when absent.
func (d *DB) GetCustomer(phone string) (*domain.Customer, error) {
	var (
		c                domain.Customer
		lastPay, lastUpd sql.NullString
		createdStr       string
	)
	err := d.db.QueryRow(`
		SELECT phone_number, name, address, khata_score, khata_limit,
			active_khata_amount, max_historical_khata_amount,
			last_payment_date, last_score_update, created_at
		FROM customers WHERE phone_number = ?
	`, phone).Scan(&c.PhoneNumber, &c.Name, &c.Address, &c.KhataScore, &c.KhataLimit,
		&c.ActiveKhataAmount, &c.MaxHistoricalKhataAmount, &lastPay, &lastUpd, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if err := scanCustomerTimes(&c, lastPay, lastUpd, createdStr); err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

// ListCustomers returns all customers ordered by name.
func (d *DB) ListCustomers() ([]domain.Customer, error) {
	rows, err := d.db.Query(`
		SELECT phone_number, name, address, khata_score, khata_limit,
			active_khata_amount, max_historical_khata_amount,
			last_payment_date, last_score_update, created_at
		FROM customers ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		var (
			c                domain.Customer
			lastPay, lastUpd sql.NullString
			createdStr       string
		)
		if err := rows.Scan(&c.PhoneNumber, &c.Name, &c.Address, &c.KhataScore, &c.KhataLimit,
			&c.ActiveKhataAmount, &c.MaxHistoricalKhataAmount, &lastPay, &lastUpd, &createdStr); err != nil {
			return nil, err
		}
		if err := scanCustomerTimes(&c, lastPay, lastUpd, createdStr); err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanCustomerTimes decodes the three stored timestamps onto the customer.
func scanCustomerTimes(c *domain.Customer, lastPay, lastUpd sql.NullString, created string) error {
	var err error
	if c.LastPaymentDate, err = scanNullableTime(lastPay); err != nil {
		return err
	}
	if c.LastScoreUpdate, err = scanNullableTime(lastUpd); err != nil {
		return err
	}
	c.CreatedAt, err = parseTime(created)
	return err
}

// SaveScore persists a recalculated score, its limit, and the timestamp in
// one statement.
func (d *DB) SaveScore(phone string, score int, limit int64, at time.Time) error {
	res, err := d.db.Exec(`
		UPDATE customers
		SET khata_score = ?, khata_limit = ?, last_score_update = ?
		WHERE phone_number = ?
	`, score, limit, timeStr(at), phone)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// AdjustOutstanding moves the active khata balance by delta and keeps the
// historical maximum in step, all in one statement so concurrent writers
// cannot observe a torn update.
func (d *DB) AdjustOutstanding(phone string, delta int64) error {
	res, err := d.db.Exec(`
		UPDATE customers
		SET active_khata_amount = MAX(0, active_khata_amount + ?),
			max_historical_khata_amount =
				MAX(max_historical_khata_amount, MAX(0, active_khata_amount + ?))
		WHERE phone_number = ?
	`, delta, delta, phone)
	if err != nil {
		return fmt.Errorf("adjust outstanding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// SetLastPayment records the most recent settlement timestamp.
func (d *DB) SetLastPayment(phone string, at time.Time) error {
	res, err := d.db.Exec(`
		UPDATE customers SET last_payment_date = ? WHERE phone_number = ?
	`, timeStr(at), phone)
	if err != nil {
		return fmt.Errorf("set last payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}
