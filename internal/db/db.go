// Package db manages the local SQLite state: session cookies, the local cart
// and the order history.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql
	"github.com/shopspring/decimal"

	"github.com/go-ports/storefront/internal/models"
)

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db.Open createSchema: %w", err)
	}
	return d, nil
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cookies (
			host    TEXT NOT NULL,
			name    TEXT NOT NULL,
			value   TEXT NOT NULL,
			path    TEXT,
			expires TEXT,
			PRIMARY KEY (host, name)
		)`,
		`CREATE TABLE IF NOT EXISTS cart_lines (
			position   INTEGER PRIMARY KEY,
			product_id INTEGER UNIQUE NOT NULL,
			product    TEXT NOT NULL,
			quantity   INTEGER NOT NULL CHECK (quantity > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			rowid         INTEGER PRIMARY KEY AUTOINCREMENT,
			submission_id TEXT UNIQUE NOT NULL,
			order_ids     TEXT NOT NULL,
			message       TEXT NOT NULL,
			guest_name    TEXT NOT NULL,
			guest_email   TEXT NOT NULL,
			item_count    INTEGER NOT NULL,
			total_amount  TEXT NOT NULL,
			created_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}

	// Migration: receipts were added after the first release.
	return d.ensureColumn("orders", "receipt_path", "TEXT NOT NULL DEFAULT ''")
}

// ensureColumn adds column to table when it is missing.
func (d *DB) ensureColumn(table, column, ddl string) error {
	rows, err := d.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return err
	}
	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		cols[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if !cols[column] {
		if _, err := d.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl)); err != nil {
			return fmt.Errorf("migration %s.%s: %w", table, column, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Cookies
// ---------------------------------------------------------------------------

// LoadCookies returns the cookies stored for host.
func (d *DB) LoadCookies(host string) ([]*http.Cookie, error) {
	rows, err := d.db.Query(`SELECT name, value, path, expires FROM cookies WHERE host = ?`, host)
	if err != nil {
		return nil, fmt.Errorf("LoadCookies: %w", err)
	}
	defer rows.Close()

	var out []*http.Cookie
	for rows.Next() {
		var name, value string
		var path, expires sql.NullString
		if err := rows.Scan(&name, &value, &path, &expires); err != nil {
			return nil, err
		}
		c := &http.Cookie{Name: name, Value: value, Path: path.String}
		if expires.Valid && expires.String != "" {
			if t, err := time.Parse(time.RFC3339, expires.String); err == nil {
				c.Expires = t
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveCookie upserts one cookie for host.
func (d *DB) SaveCookie(host string, c *http.Cookie) error {
	var expires string
	if !c.Expires.IsZero() {
		expires = c.Expires.UTC().Format(time.RFC3339)
	}
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO cookies (host, name, value, path, expires) VALUES (?, ?, ?, ?, ?)`,
		host, c.Name, c.Value, c.Path, expires,
	)
	if err != nil {
		return fmt.Errorf("SaveCookie: %w", err)
	}
	return nil
}

// DeleteCookie removes one cookie for host. Missing cookies are not an error.
func (d *DB) DeleteCookie(host, name string) error {
	_, err := d.db.Exec(`DELETE FROM cookies WHERE host = ? AND name = ?`, host, name)
	return err
}

// ---------------------------------------------------------------------------
// Local cart
// ---------------------------------------------------------------------------

// CartLines returns the persisted local cart in insertion order.
func (d *DB) CartLines() ([]models.CartLine, error) {
	rows, err := d.db.Query(`SELECT product, quantity FROM cart_lines ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("CartLines: %w", err)
	}
	defer rows.Close()

	lines := make([]models.CartLine, 0)
	for rows.Next() {
		var productJSON string
		var qty int
		if err := rows.Scan(&productJSON, &qty); err != nil {
			return nil, err
		}
		var p models.Product
		if err := json.Unmarshal([]byte(productJSON), &p); err != nil {
			return nil, fmt.Errorf("CartLines decode product: %w", err)
		}
		lines = append(lines, models.CartLine{Product: p, Quantity: qty})
	}
	return lines, rows.Err()
}

// ReplaceCartLines atomically replaces the persisted local cart with lines.
func (d *DB) ReplaceCartLines(lines []models.CartLine) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("ReplaceCartLines begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM cart_lines`); err != nil {
		return fmt.Errorf("ReplaceCartLines delete: %w", err)
	}
	for i, l := range lines {
		productJSON, err := json.Marshal(l.Product)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO cart_lines (position, product_id, product, quantity) VALUES (?, ?, ?, ?)`,
			i, l.Product.ID, string(productJSON), l.Quantity,
		); err != nil {
			return fmt.Errorf("ReplaceCartLines insert: %w", err)
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// InsertOrder records a submitted order.
func (d *DB) InsertOrder(rec *models.OrderRecord) error {
	idsJSON, err := json.Marshal(rec.OrderIDs)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		INSERT INTO orders (
			submission_id, order_ids, message, guest_name, guest_email,
			item_count, total_amount, receipt_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SubmissionID, string(idsJSON), rec.Message, rec.GuestName, rec.GuestEmail,
		rec.ItemCount, rec.TotalAmount.StringFixed(2), rec.ReceiptPath,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("InsertOrder: %w", err)
	}
	return nil
}

// ListOrders returns the most recent orders first. limit <= 0 means no limit.
func (d *DB) ListOrders(limit int) ([]models.OrderRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(`
		SELECT submission_id, order_ids, message, guest_name, guest_email,
		       item_count, total_amount, receipt_path, created_at
		FROM orders ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListOrders: %w", err)
	}
	defer rows.Close()

	out := make([]models.OrderRecord, 0)
	for rows.Next() {
		var rec models.OrderRecord
		var idsJSON, total, created string
		if err := rows.Scan(
			&rec.SubmissionID, &idsJSON, &rec.Message, &rec.GuestName, &rec.GuestEmail,
			&rec.ItemCount, &total, &rec.ReceiptPath, &created,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(idsJSON), &rec.OrderIDs); err != nil {
			return nil, fmt.Errorf("ListOrders order ids: %w", err)
		}
		if rec.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("ListOrders total: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("ListOrders created_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountOrders returns the number of recorded orders.
func (d *DB) CountOrders() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (d *DB) GetMeta(key string) (string, bool, error) {
	var val string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value,
	)
	return err
}
