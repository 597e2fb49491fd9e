// Package sales records point-of-sale checkouts against stock batches.
package sales

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/audit"
	"pharmapos/m/internal/database"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = audit.TimestampLayout

	// MaxLineQuantity caps a single cart line in base units.
	MaxLineQuantity int64 = 1_000_000_000
)

type Customer struct {
	Name  string
	Phone string
	CNIC  string
}

type LineItem struct {
	BatchID      int64
	UnitID       int64
	Quantity     int64
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
	MedicineName string
}

type SaleRequest struct {
	ShopID         int64
	OperatorID     int64
	Customer       Customer
	Items          []LineItem
	DiscountAmount decimal.Decimal
	PaymentMethod  string
}

type Receipt struct {
	SaleID        int64  `json:"sale_id"`
	InvoiceNumber string `json:"invoice_number"`
	Totals
}

// AuditRecorder receives the best-effort activity entry written after commit.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Processor turns a cart into a persisted sale, decrementing batch stock in
// the same transaction.
type Processor struct {
	db     *sqlx.DB
	audit  AuditRecorder
	log    *zap.Logger
	now    func() time.Time
	suffix func() int
}

func NewProcessor(db *sqlx.DB, recorder AuditRecorder, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{db: db, audit: recorder, log: log, now: time.Now, suffix: randomSuffix}
}

// line is a validated cart entry joined with its batch.
type line struct {
	LineItem
	medicineID int64
	medicine   string
	base       int64
}

type batchInfo struct {
	ID         int64  `db:"id"`
	ShopID     int64  `db:"shop_id"`
	MedicineID int64  `db:"medicine_id"`
	ExpiryDate string `db:"expiry_date"`
	IsActive   bool   `db:"is_active"`
	Medicine   string `db:"medicine_name"`
	BaseUnitID int64  `db:"base_unit_id"`
}

// ProcessSale validates req, then atomically inserts the sale, its line items
// and the stock decrements. On any failure nothing is persisted.
func (p *Processor) ProcessSale(ctx context.Context, req SaleRequest) (Receipt, error) {
	if err := validateRequest(&req); err != nil {
		return Receipt{}, err
	}

	shop, err := p.loadShop(ctx, req.ShopID)
	if err != nil {
		return Receipt{}, err
	}

	now := p.now()
	lines, err := p.resolveLines(ctx, req, now)
	if err != nil {
		return Receipt{}, err
	}

	totals := ComputeTotals(req.Items, req.DiscountAmount)
	if totals.Total.IsNegative() {
		return Receipt{}, invalid("Discount exceeds sale total")
	}

	if err := p.precheck(ctx, req.ShopID, lines, now); err != nil {
		return Receipt{}, err
	}

	invoice := InvoiceNumber(shop.Code, now, p.suffix())
	saleID, err := p.commitSale(ctx, req, lines, totals, invoice, now)
	if err != nil {
		return Receipt{}, err
	}

	if p.audit != nil {
		shopID := req.ShopID
		entry := audit.Entry{UserID: req.OperatorID, ShopID: &shopID, Action: audit.ActionSaleCompleted, Module: "sales", RecordID: &saleID,
			CreatedAt: now.Format(audit.TimestampLayout)}
		if err := p.audit.Record(ctx, entry); err != nil {
			p.log.Warn("audit entry not recorded", zap.Int64("sale_id", saleID), zap.Error(err))
		}
	}

	p.log.Info("sale completed",
		zap.String("invoice_number", invoice),
		zap.Int64("sale_id", saleID),
		zap.Int64("shop_id", req.ShopID),
		zap.Int64("operator_id", req.OperatorID),
		zap.Int("items", len(lines)),
		zap.String("total_amount", totals.Total.StringFixed(2)))

	return Receipt{SaleID: saleID, InvoiceNumber: invoice, Totals: totals}, nil
}

func validateRequest(req *SaleRequest) error {
	if len(req.Items) == 0 {
		return invalid("No items in cart")
	}
	if req.ShopID <= 0 {
		return invalid("Shop not specified")
	}
	if req.OperatorID <= 0 {
		return invalid("Operator not specified")
	}
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !domain.ValidPaymentMethod(req.PaymentMethod) {
		return invalid("Unsupported payment method %q", req.PaymentMethod)
	}
	if req.DiscountAmount.IsNegative() {
		return invalid("Discount cannot be negative")
	}
	for i, it := range req.Items {
		switch {
		case it.BatchID <= 0:
			return invalid("Item %d has no batch", i+1)
		case it.UnitID <= 0:
			return invalid("Item %d has no unit", i+1)
		case it.Quantity <= 0:
			return invalid("Item %d quantity must be positive", i+1)
		case it.UnitPrice.IsNegative():
			return invalid("Item %d unit price cannot be negative", i+1)
		case !lineTotalMatches(it):
			return invalid("Item %d total does not match quantity and unit price", i+1)
		}
	}
	return nil
}

func (p *Processor) loadShop(ctx context.Context, id int64) (domain.Shop, error) {
	var shop domain.Shop
	err := p.db.GetContext(ctx, &shop, p.db.Rebind(`SELECT id, name, code, is_active FROM shops WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !shop.IsActive) {
		return shop, invalid("Shop not found")
	}
	if err != nil {
		return shop, storeErr("load shop", err)
	}
	return shop, nil
}

func (p *Processor) resolveLines(ctx context.Context, req SaleRequest, now time.Time) ([]line, error) {
	today := now.Format(dateLayout)
	lines := make([]line, 0, len(req.Items))
	for i, it := range req.Items {
		var b batchInfo
		err := p.db.GetContext(ctx, &b, p.db.Rebind(`SELECT sb.id, sb.shop_id, sb.medicine_id, sb.expiry_date, sb.is_active,
			m.name AS medicine_name, m.base_unit_id
			FROM stock_batches sb JOIN medicines m ON m.id = sb.medicine_id
			WHERE sb.id = ?`), it.BatchID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, invalid("Batch %d not found", it.BatchID)
		}
		if err != nil {
			return nil, storeErr("load batch", err)
		}
		if b.ShopID != req.ShopID {
			return nil, invalid("Batch %d does not belong to this shop", it.BatchID)
		}
		if !b.IsActive {
			return nil, invalid("Batch %d of %s is no longer active", it.BatchID, b.Medicine)
		}
		if domain.DateOnly(b.ExpiryDate) <= today {
			return nil, invalid("Batch %d of %s has expired", it.BatchID, b.Medicine)
		}

		factor := int64(1)
		if it.UnitID != b.BaseUnitID {
			err := p.db.GetContext(ctx, &factor, p.db.Rebind(`SELECT conversion_factor FROM unit_conversions
				WHERE medicine_id = ? AND to_unit_id = ? AND is_active = TRUE`), b.MedicineID, it.UnitID)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, invalid("Unit %d is not sold for %s", it.UnitID, b.Medicine)
			}
			if err != nil {
				return nil, storeErr("load unit conversion", err)
			}
		}

		if factor <= 0 || factor > math.MaxInt64/it.Quantity || it.Quantity*factor > MaxLineQuantity {
			return nil, invalid("Item %d quantity is too large", i+1)
		}

		lines = append(lines, line{LineItem: it, medicineID: b.MedicineID, medicine: b.Medicine, base: it.Quantity * factor})
	}
	return lines, nil
}

// precheck compares the cart's per-medicine demand with shop-wide stock.
// It can go stale before the transaction runs; the in-transaction check is authoritative.
func (p *Processor) precheck(ctx context.Context, shopID int64, lines []line, now time.Time) error {
	demand := make(map[int64]int64)
	var order []int64
	names := make(map[int64]string)
	for _, l := range lines {
		if _, seen := demand[l.medicineID]; !seen {
			order = append(order, l.medicineID)
			names[l.medicineID] = l.medicine
		}
		demand[l.medicineID] += l.base
	}
	for _, medicineID := range order {
		available, err := availableQuantity(ctx, p.db, shopID, medicineID, now)
		if err != nil {
			return err
		}
		if available < demand[medicineID] {
			return &InsufficientStockError{Medicine: names[medicineID], Requested: demand[medicineID], Available: available}
		}
	}
	return nil
}

func (p *Processor) commitSale(ctx context.Context, req SaleRequest, lines []line, totals Totals, invoice string, now time.Time) (saleID int64, err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storeErr("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				p.log.Error("rollback failed", zap.String("invoice_number", invoice), zap.Error(rbErr))
			}
		}
	}()

	err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO sales (invoice_number, shop_id, user_id, customer_name, customer_phone, customer_cnic,
		subtotal, tax_amount, discount_amount, total_amount, payment_method, sale_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		invoice, req.ShopID, req.OperatorID,
		nullIfEmpty(req.Customer.Name), nullIfEmpty(req.Customer.Phone), nullIfEmpty(req.Customer.CNIC),
		totals.Subtotal, totals.Tax, totals.Discount, totals.Total, req.PaymentMethod,
		now.Format(timestampLayout)).Scan(&saleID)
	if err != nil {
		return 0, storeErr("insert sale", err)
	}

	lockClause := ""
	if database.IsPostgres(p.db) {
		lockClause = " FOR UPDATE"
	}

	for _, l := range lines {
		var current int64
		if err = tx.GetContext(ctx, &current, tx.Rebind(`SELECT current_quantity FROM stock_batches WHERE id = ?`+lockClause), l.BatchID); err != nil {
			return 0, storeErr("read batch quantity", err)
		}
		if current < l.base {
			err = &InsufficientStockError{Medicine: l.medicine, BatchID: l.BatchID, Requested: l.base, Available: current}
			return 0, err
		}

		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO sale_items (sale_id, batch_id, unit_id, quantity_in_unit, base_unit_quantity, unit_price, total_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			saleID, l.BatchID, l.UnitID, l.Quantity, l.base, l.UnitPrice.Round(2), l.LineTotal.Round(2)); err != nil {
			return 0, storeErr("insert sale item", err)
		}

		res, execErr := tx.ExecContext(ctx, tx.Rebind(`UPDATE stock_batches SET current_quantity = current_quantity - ?, updated_at = ?
			WHERE id = ? AND current_quantity >= ?`), l.base, now.Format(timestampLayout), l.BatchID, l.base)
		if execErr != nil {
			err = storeErr("decrement stock", execErr)
			return 0, err
		}
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			err = storeErr("decrement stock", raErr)
			return 0, err
		}
		if affected == 0 {
			err = &InsufficientStockError{Medicine: l.medicine, BatchID: l.BatchID, Requested: l.base, Available: current}
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, storeErr("commit sale", err)
	}
	return saleID, nil
}

func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
