package migrations

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"pharmapos/m/internal/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS shops (
		id {{pk}},
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS users (
		id {{pk}},
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		shop_id INTEGER REFERENCES shops(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS medicine_units (
		id {{pk}},
		name TEXT NOT NULL,
		display_name TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS medicines (
		id {{pk}},
		name TEXT NOT NULL,
		generic_name TEXT NOT NULL DEFAULT '',
		brand TEXT NOT NULL DEFAULT '',
		strength TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		base_unit_id INTEGER NOT NULL REFERENCES medicine_units(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS unit_conversions (
		id {{pk}},
		medicine_id INTEGER NOT NULL REFERENCES medicines(id),
		from_unit_id INTEGER NOT NULL REFERENCES medicine_units(id),
		to_unit_id INTEGER NOT NULL REFERENCES medicine_units(id),
		conversion_factor INTEGER NOT NULL CHECK (conversion_factor > 0),
		selling_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id {{pk}},
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS stock_batches (
		id {{pk}},
		shop_id INTEGER NOT NULL REFERENCES shops(id),
		medicine_id INTEGER NOT NULL REFERENCES medicines(id),
		batch_number TEXT NOT NULL,
		supplier_id INTEGER REFERENCES suppliers(id),
		manufacture_date {{date}},
		expiry_date {{date}} NOT NULL,
		purchase_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		base_unit_quantity INTEGER NOT NULL CHECK (base_unit_quantity >= 0),
		current_quantity INTEGER NOT NULL CHECK (current_quantity >= 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP,
		updated_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_stock_batches_shop_medicine ON stock_batches (shop_id, medicine_id);`,
	`CREATE TABLE IF NOT EXISTS sales (
		id {{pk}},
		invoice_number TEXT NOT NULL,
		shop_id INTEGER NOT NULL REFERENCES shops(id),
		user_id INTEGER NOT NULL REFERENCES users(id),
		customer_name TEXT,
		customer_phone TEXT,
		customer_cnic TEXT,
		subtotal NUMERIC(12,2) NOT NULL,
		tax_amount NUMERIC(12,2) NOT NULL,
		discount_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		total_amount NUMERIC(12,2) NOT NULL,
		payment_method TEXT NOT NULL,
		sale_date {{timestamp}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sales_invoice_number ON sales (invoice_number);`,
	`CREATE INDEX IF NOT EXISTS idx_sales_shop_date ON sales (shop_id, sale_date);`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id {{pk}},
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		batch_id INTEGER NOT NULL REFERENCES stock_batches(id),
		unit_id INTEGER NOT NULL REFERENCES medicine_units(id),
		quantity_in_unit INTEGER NOT NULL,
		base_unit_quantity INTEGER NOT NULL,
		unit_price NUMERIC(12,2) NOT NULL,
		total_price NUMERIC(12,2) NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id {{pk}},
		user_id INTEGER,
		shop_id INTEGER,
		action TEXT NOT NULL,
		module TEXT NOT NULL,
		record_id INTEGER,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at {{timestamp}} DEFAULT CURRENT_TIMESTAMP
	);`,
}

var dialects = map[string]*strings.Replacer{
	database.DriverSQLite: strings.NewReplacer(
		"{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{timestamp}}", "TEXT",
		"{{date}}", "TEXT",
	),
	database.DriverPostgres: strings.NewReplacer(
		"{{pk}}", "BIGSERIAL PRIMARY KEY",
		"{{timestamp}}", "TIMESTAMPTZ",
		"{{date}}", "DATE",
	),
}

// Run creates the database schema required for the POS backend.
func Run(db *sqlx.DB) error {
	r, ok := dialects[db.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}
	for _, stmt := range schema {
		if _, err := db.Exec(r.Replace(stmt)); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
