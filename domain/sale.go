package domain

import "github.com/shopspring/decimal"

const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentBankTransfer = "bank_transfer"
)

// ValidPaymentMethod reports whether m is one of the accepted payment methods.
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer:
		return true
	}
	return false
}

type Sale struct {
	ID             int64           `db:"id" json:"id"`
	InvoiceNumber  string          `db:"invoice_number" json:"invoice_number"`
	ShopID         int64           `db:"shop_id" json:"shop_id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	CustomerName   *string         `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone  *string         `db:"customer_phone" json:"customer_phone,omitempty"`
	CustomerCNIC   *string         `db:"customer_cnic" json:"customer_cnic,omitempty"`
	Subtotal       decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount      decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	SaleDate       string          `db:"sale_date" json:"sale_date"`
}

type SaleItem struct {
	ID               int64           `db:"id" json:"id"`
	SaleID           int64           `db:"sale_id" json:"sale_id"`
	BatchID          int64           `db:"batch_id" json:"batch_id"`
	UnitID           int64           `db:"unit_id" json:"unit_id"`
	QuantityInUnit   int64           `db:"quantity_in_unit" json:"quantity"`
	BaseUnitQuantity int64           `db:"base_unit_quantity" json:"base_unit_quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice       decimal.Decimal `db:"total_price" json:"total_price"`
}
