package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pharmapos/m/domain"
)

const (
	dateLayout      = "2006-01-02"
	DefaultTopLimit = 10
	maxTopLimit     = 100
)

var ErrInvalidRange = errors.New("from must not be after to")

// Range is an inclusive span of calendar days.
type Range struct {
	From time.Time
	To   time.Time
}

// MonthToDate spans the first of now's month through now.
func MonthToDate(now time.Time) Range {
	return Range{From: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), To: now}
}

func (r Range) bounds() (from, to string, err error) {
	start := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, r.From.Location())
	end := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, r.To.Location())
	if start.After(end) {
		return "", "", ErrInvalidRange
	}
	return start.Format(timestampLayout), end.AddDate(0, 0, 1).Format(timestampLayout), nil
}

type DayTotal struct {
	Date       string          `db:"day" json:"date"`
	SalesCount int64           `db:"sales_count" json:"sales_count"`
	Revenue    decimal.Decimal `db:"revenue" json:"revenue"`
}

type RangeReport struct {
	From            string          `db:"-" json:"from"`
	To              string          `db:"-" json:"to"`
	SalesCount      int64           `db:"sales_count" json:"sales_count"`
	Revenue         decimal.Decimal `db:"revenue" json:"revenue"`
	AverageSale     decimal.Decimal `db:"-" json:"average_sale"`
	UniqueCustomers int64           `db:"unique_customers" json:"unique_customers"`
	Daily           []DayTotal      `db:"-" json:"daily"`
}

// RangeSummary totals a shop's sales over r with a per-day breakdown. Days
// without sales are omitted from Daily.
func (s *Service) RangeSummary(ctx context.Context, shopID int64, r Range) (RangeReport, error) {
	from, to, err := r.bounds()
	if err != nil {
		return RangeReport{}, err
	}

	var rep RangeReport
	err = s.db.GetContext(ctx, &rep, s.db.Rebind(`SELECT COUNT(*) AS sales_count,
		COALESCE(SUM(total_amount), 0) AS revenue,
		COUNT(DISTINCT customer_name) AS unique_customers
		FROM sales WHERE shop_id = ? AND sale_date >= ? AND sale_date < ?`), shopID, from, to)
	if err != nil {
		return rep, fmt.Errorf("summarise range: %w", err)
	}

	rep.Daily = []DayTotal{}
	err = s.db.SelectContext(ctx, &rep.Daily, s.db.Rebind(`SELECT DATE(sale_date) AS day, COUNT(*) AS sales_count,
		COALESCE(SUM(total_amount), 0) AS revenue
		FROM sales WHERE shop_id = ? AND sale_date >= ? AND sale_date < ?
		GROUP BY DATE(sale_date) ORDER BY DATE(sale_date)`), shopID, from, to)
	if err != nil {
		return rep, fmt.Errorf("summarise days: %w", err)
	}

	rep.From, rep.To = r.From.Format(dateLayout), r.To.Format(dateLayout)
	rep.Revenue = rep.Revenue.Round(2)
	rep.AverageSale = decimal.Zero
	if rep.SalesCount > 0 {
		rep.AverageSale = rep.Revenue.Div(decimal.NewFromInt(rep.SalesCount)).Round(2)
	}
	for i := range rep.Daily {
		rep.Daily[i].Date = domain.DateOnly(rep.Daily[i].Date)
		rep.Daily[i].Revenue = rep.Daily[i].Revenue.Round(2)
	}
	return rep, nil
}

type MedicineSales struct {
	MedicineID   int64           `db:"medicine_id" json:"medicine_id"`
	Name         string          `db:"medicine_name" json:"medicine_name"`
	Strength     string          `db:"strength" json:"strength"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	BaseQuantity int64           `db:"base_quantity" json:"base_quantity"`
	Revenue      decimal.Decimal `db:"revenue" json:"revenue"`
	SalesCount   int64           `db:"sales_count" json:"sales_count"`
}

// TopMedicines ranks a shop's medicines by revenue over r.
func (s *Service) TopMedicines(ctx context.Context, shopID int64, r Range, limit int) ([]MedicineSales, error) {
	from, to, err := r.bounds()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	top := []MedicineSales{}
	err = s.db.SelectContext(ctx, &top, s.db.Rebind(`SELECT m.id AS medicine_id, m.name AS medicine_name, m.strength,
		SUM(si.quantity_in_unit) AS quantity,
		SUM(si.base_unit_quantity) AS base_quantity,
		COALESCE(SUM(si.total_price), 0) AS revenue,
		COUNT(DISTINCT s.id) AS sales_count
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN stock_batches sb ON sb.id = si.batch_id
		JOIN medicines m ON m.id = sb.medicine_id
		WHERE s.shop_id = ? AND s.sale_date >= ? AND s.sale_date < ?
		GROUP BY m.id, m.name, m.strength
		ORDER BY revenue DESC, m.name
		LIMIT ?`), shopID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("rank medicines: %w", err)
	}
	for i := range top {
		top[i].Revenue = top[i].Revenue.Round(2)
	}
	return top, nil
}

type ShopPerformance struct {
	ShopID      int64           `db:"shop_id" json:"shop_id"`
	Name        string          `db:"shop_name" json:"shop_name"`
	Code        string          `db:"code" json:"code"`
	SalesCount  int64           `db:"sales_count" json:"sales_count"`
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
	ActiveUsers int64           `db:"active_users" json:"active_users"`
}

// ShopComparison lists every active shop's sales over r, highest revenue
// first. Shops without sales are included with zero totals.
func (s *Service) ShopComparison(ctx context.Context, r Range) ([]ShopPerformance, error) {
	from, to, err := r.bounds()
	if err != nil {
		return nil, err
	}

	shops := []ShopPerformance{}
	err = s.db.SelectContext(ctx, &shops, s.db.Rebind(`SELECT sh.id AS shop_id, sh.name AS shop_name, sh.code,
		COUNT(s.id) AS sales_count,
		COALESCE(SUM(s.total_amount), 0) AS revenue,
		COUNT(DISTINCT s.user_id) AS active_users
		FROM shops sh
		LEFT JOIN sales s ON s.shop_id = sh.id AND s.sale_date >= ? AND s.sale_date < ?
		WHERE sh.is_active = TRUE
		GROUP BY sh.id, sh.name, sh.code
		ORDER BY revenue DESC, sh.name`), from, to)
	if err != nil {
		return nil, fmt.Errorf("compare shops: %w", err)
	}
	for i := range shops {
		shops[i].Revenue = shops[i].Revenue.Round(2)
	}
	return shops, nil
}
