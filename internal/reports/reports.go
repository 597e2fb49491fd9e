// Package reports serves the read side of completed sales.
package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
)

var ErrSaleNotFound = errors.New("sale not found")

const timestampLayout = "2006-01-02 15:04:05"

type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

type ItemDetail struct {
	domain.SaleItem
	MedicineName string `db:"medicine_name" json:"medicine_name"`
	BatchNumber  string `db:"batch_number" json:"batch_number"`
	UnitName     string `db:"unit_name" json:"unit_name"`
}

type SaleDetail struct {
	domain.Sale
	Items []ItemDetail `json:"items"`
}

// SaleByInvoice loads a shop's sale and its line items. Invoice numbers are
// not unique; the most recent match wins.
func (s *Service) SaleByInvoice(ctx context.Context, shopID int64, invoice string) (SaleDetail, error) {
	var detail SaleDetail
	err := s.db.GetContext(ctx, &detail.Sale, s.db.Rebind(`SELECT id, invoice_number, shop_id, user_id, customer_name, customer_phone, customer_cnic,
		subtotal, tax_amount, discount_amount, total_amount, payment_method, sale_date
		FROM sales WHERE shop_id = ? AND invoice_number = ? ORDER BY id DESC LIMIT 1`),
		shopID, strings.ToUpper(strings.TrimSpace(invoice)))
	if errors.Is(err, sql.ErrNoRows) {
		return detail, ErrSaleNotFound
	}
	if err != nil {
		return detail, fmt.Errorf("load sale: %w", err)
	}

	detail.Items = []ItemDetail{}
	err = s.db.SelectContext(ctx, &detail.Items, s.db.Rebind(`SELECT si.id, si.sale_id, si.batch_id, si.unit_id, si.quantity_in_unit,
		si.base_unit_quantity, si.unit_price, si.total_price,
		m.name AS medicine_name, sb.batch_number, u.name AS unit_name
		FROM sale_items si
		JOIN stock_batches sb ON sb.id = si.batch_id
		JOIN medicines m ON m.id = sb.medicine_id
		JOIN medicine_units u ON u.id = si.unit_id
		WHERE si.sale_id = ? ORDER BY si.id`), detail.ID)
	if err != nil {
		return detail, fmt.Errorf("load sale items: %w", err)
	}
	return detail, nil
}

type PaymentTotal struct {
	Method string          `db:"payment_method" json:"payment_method"`
	Count  int64           `db:"sales_count" json:"sales_count"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

type Summary struct {
	Date       string          `db:"-" json:"date"`
	SalesCount int64           `db:"sales_count" json:"sales_count"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax        decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	Discount   decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Revenue    decimal.Decimal `db:"revenue" json:"revenue"`
	ByPayment  []PaymentTotal  `db:"-" json:"by_payment"`
}

// DailySummary totals a shop's sales for the calendar day containing day.
func (s *Service) DailySummary(ctx context.Context, shopID int64, day time.Time) (Summary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	from, to := start.Format(timestampLayout), start.AddDate(0, 0, 1).Format(timestampLayout)

	var sum Summary
	err := s.db.GetContext(ctx, &sum, s.db.Rebind(`SELECT COUNT(*) AS sales_count,
		COALESCE(SUM(subtotal), 0) AS subtotal,
		COALESCE(SUM(tax_amount), 0) AS tax_amount,
		COALESCE(SUM(discount_amount), 0) AS discount_amount,
		COALESCE(SUM(total_amount), 0) AS revenue
		FROM sales WHERE shop_id = ? AND sale_date >= ? AND sale_date < ?`), shopID, from, to)
	if err != nil {
		return sum, fmt.Errorf("summarise sales: %w", err)
	}

	sum.ByPayment = []PaymentTotal{}
	err = s.db.SelectContext(ctx, &sum.ByPayment, s.db.Rebind(`SELECT payment_method, COUNT(*) AS sales_count, COALESCE(SUM(total_amount), 0) AS amount
		FROM sales WHERE shop_id = ? AND sale_date >= ? AND sale_date < ?
		GROUP BY payment_method ORDER BY payment_method`), shopID, from, to)
	if err != nil {
		return sum, fmt.Errorf("summarise payments: %w", err)
	}

	sum.Date = start.Format("2006-01-02")
	sum.Subtotal = sum.Subtotal.Round(2)
	sum.Tax = sum.Tax.Round(2)
	sum.Discount = sum.Discount.Round(2)
	sum.Revenue = sum.Revenue.Round(2)
	for i := range sum.ByPayment {
		sum.ByPayment[i].Amount = sum.ByPayment[i].Amount.Round(2)
	}
	return sum, nil
}
