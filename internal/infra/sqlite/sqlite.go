// Package sqlite provides the persistent store for customers, ledger
// entries, products, bills, and deals. Pure-Go driver (modernc.org/sqlite),
// so the binary cross-compiles without CGO.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection. All store interfaces in internal/domain
// are implemented on this one type.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for an in-memory database (tests).
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// sqlite allows one writer; a single pooled connection avoids
	// SQLITE_BUSY under concurrent handlers and keeps :memory: databases
	// from silently splitting per connection.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements. Each string is a single SQL
// statement (sqlite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
			phone_number                TEXT PRIMARY KEY,
			name                        TEXT NOT NULL,
			address                     TEXT NOT NULL DEFAULT '',
			khata_score                 INTEGER NOT NULL DEFAULT 0,
			khata_limit                 INTEGER NOT NULL DEFAULT 0,
			active_khata_amount         INTEGER NOT NULL DEFAULT 0,
			max_historical_khata_amount INTEGER NOT NULL DEFAULT 0,
			last_payment_date           TEXT,
			last_score_update           TEXT,
			created_at                  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id             TEXT PRIMARY KEY,
			customer_phone TEXT NOT NULL,
			bill_id        TEXT NOT NULL DEFAULT '',
			amount         INTEGER NOT NULL,
			payment_mode   TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'PENDING',
			created_at     TEXT NOT NULL,
			paid_at        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_customer_mode
			ON ledger_entries(customer_phone, payment_mode)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_status
			ON ledger_entries(customer_phone, status)`,

		`CREATE TABLE IF NOT EXISTS products (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			category        TEXT NOT NULL DEFAULT '',
			unit            TEXT NOT NULL DEFAULT 'pc',
			price           INTEGER NOT NULL DEFAULT 0,
			stock           INTEGER NOT NULL DEFAULT 0,
			low_stock_level INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS bills (
			id             TEXT PRIMARY KEY,
			customer_phone TEXT NOT NULL DEFAULT '',
			total          INTEGER NOT NULL,
			payment_mode   TEXT NOT NULL,
			created_at     TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bill_items (
			bill_id      TEXT NOT NULL,
			product_id   TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity     INTEGER NOT NULL,
			unit_price   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bill_items_bill ON bill_items(bill_id)`,

		`CREATE TABLE IF NOT EXISTS deals (
			id         TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			title      TEXT NOT NULL,
			deal_price INTEGER NOT NULL,
			target_qty INTEGER NOT NULL,
			joined_qty INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL DEFAULT 'OPEN',
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}
}

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Time Helpers ───────────────────────────────────────────────────────────
// Timestamps are stored as RFC3339 TEXT.

func timeStr(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeStr(*t)
}

func scanNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
