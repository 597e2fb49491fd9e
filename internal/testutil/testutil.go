// Package testutil builds in-memory databases and fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"pharmapos/m/internal/database"
	"pharmapos/m/internal/migrations"
)

// FarExpiry keeps fixture batches sellable regardless of the test clock.
const FarExpiry = "2099-12-31"

// NewDB returns a migrated in-memory SQLite database closed at test cleanup.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func insert(t testing.TB, db *sqlx.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRowx(db.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
		t.Fatalf("fixture %q: %v", query, err)
	}
	return id
}

func Shop(t testing.TB, db *sqlx.DB, name, code string) int64 {
	return insert(t, db, `INSERT INTO shops (name, code) VALUES (?, ?)`, name, code)
}

// User inserts an active user whose password is the bcrypt hash of password.
func User(t testing.TB, db *sqlx.DB, email, password, role string, shopID *int64) int64 {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return insert(t, db, `INSERT INTO users (username, email, password, role, shop_id) VALUES (?, ?, ?, ?, ?)`,
		email, email, string(hashed), role, shopID)
}

func Unit(t testing.TB, db *sqlx.DB, name string) int64 {
	return insert(t, db, `INSERT INTO medicine_units (name, display_name) VALUES (?, ?)`, name, name)
}

func Medicine(t testing.TB, db *sqlx.DB, name string, baseUnitID int64) int64 {
	return insert(t, db, `INSERT INTO medicines (name, generic_name, brand, barcode, base_unit_id) VALUES (?, ?, ?, ?, ?)`,
		name, name+" generic", name+" brand", "BC-"+name, baseUnitID)
}

// Conversion registers toUnit as a sale unit worth factor base units.
func Conversion(t testing.TB, db *sqlx.DB, medicineID, fromUnit, toUnit, factor int64, price string) int64 {
	return insert(t, db, `INSERT INTO unit_conversions (medicine_id, from_unit_id, to_unit_id, conversion_factor, selling_price) VALUES (?, ?, ?, ?, ?)`,
		medicineID, fromUnit, toUnit, factor, price)
}

// Batch inserts an active batch with current_quantity == base_unit_quantity == qty.
func Batch(t testing.TB, db *sqlx.DB, shopID, medicineID, qty int64, expiry string) int64 {
	return insert(t, db, `INSERT INTO stock_batches (shop_id, medicine_id, batch_number, expiry_date, purchase_price, base_unit_quantity, current_quantity) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shopID, medicineID, "B-001", expiry, "10.00", qty, qty)
}

// Quantity reads a batch's current quantity.
func Quantity(t testing.TB, db *sqlx.DB, batchID int64) int64 {
	t.Helper()
	var q int64
	if err := db.Get(&q, db.Rebind(`SELECT current_quantity FROM stock_batches WHERE id = ?`), batchID); err != nil {
		t.Fatalf("quantity: %v", err)
	}
	return q
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
