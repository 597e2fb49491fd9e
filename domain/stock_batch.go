package domain

import "github.com/shopspring/decimal"

const (
	StockInStock    = "in_stock"
	StockLow        = "low_stock"
	StockOutOfStock = "out_of_stock"

	DefaultLowStockThreshold = 10
)

type StockBatch struct {
	ID               int64           `db:"id" json:"id"`
	ShopID           int64           `db:"shop_id" json:"shop_id"`
	MedicineID       int64           `db:"medicine_id" json:"medicine_id"`
	BatchNumber      string          `db:"batch_number" json:"batch_number"`
	SupplierID       *int64          `db:"supplier_id" json:"supplier_id,omitempty"`
	ManufactureDate  *string         `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate       string          `db:"expiry_date" json:"expiry_date"`
	PurchasePrice    decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	BaseUnitQuantity int64           `db:"base_unit_quantity" json:"base_unit_quantity"`
	CurrentQuantity  int64           `db:"current_quantity" json:"current_quantity"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	CreatedAt        string          `db:"created_at" json:"created_at"`
	UpdatedAt        string          `db:"updated_at" json:"updated_at"`
}

// StockStatus classifies a quantity against a low-stock threshold.
func StockStatus(quantity, threshold int64) string {
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= threshold:
		return StockLow
	default:
		return StockInStock
	}
}

// DateOnly trims driver-specific time suffixes from a stored date so that
// "2027-01-31T00:00:00Z" and "2027-01-31" compare equal.
func DateOnly(s string) string {
	const n = len("2006-01-02")
	if len(s) > n {
		return s[:n]
	}
	return s
}
