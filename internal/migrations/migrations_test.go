package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/m/internal/database"
)

func TestRunIsIdempotent(t *testing.T) {
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Run(db))
	require.NoError(t, Run(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	assert.Equal(t, []string{
		"activity_logs", "medicine_units", "medicines", "sale_items", "sales",
		"shops", "stock_batches", "suppliers", "unit_conversions", "users",
	}, tables)
}

func TestStockCannotGoNegative(t *testing.T) {
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Run(db))

	db.MustExec(`INSERT INTO shops (name, code) VALUES ('Main', 'MAIN')`)
	db.MustExec(`INSERT INTO medicine_units (name, display_name) VALUES ('tablet', 'Tablet')`)
	db.MustExec(`INSERT INTO medicines (name, base_unit_id) VALUES ('Panadol', 1)`)
	db.MustExec(`INSERT INTO stock_batches (shop_id, medicine_id, batch_number, expiry_date, base_unit_quantity, current_quantity)
		VALUES (1, 1, 'B1', '2099-01-01', 5, 5)`)

	_, err = db.Exec(`UPDATE stock_batches SET current_quantity = current_quantity - 6 WHERE id = 1`)
	assert.Error(t, err)

	_, err = db.Exec(`INSERT INTO medicines (name, base_unit_id) VALUES ('Ghost', 99)`)
	assert.Error(t, err, "foreign keys are enforced")
}

func TestDialectsReplaceAllPlaceholders(t *testing.T) {
	for name, r := range dialects {
		for _, stmt := range schema {
			assert.NotContains(t, r.Replace(stmt), "{{", name)
		}
	}
}
