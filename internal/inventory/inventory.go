// Package inventory manages stock batches: receiving, manual adjustment,
// soft deletion, POS search and expiry/low-stock alerts.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmapos/m/domain"
	"pharmapos/m/internal/audit"
)

const (
	DefaultSearchLimit = 20
	maxSearchLimit     = 100
	DefaultExpiryDays  = 30
	maxExpiryDays      = 365
	dateLayout         = "2006-01-02"
)

var (
	ErrBatchNotFound    = errors.New("batch not found")
	ErrShopNotFound     = errors.New("shop not found")
	ErrMedicineNotFound = errors.New("medicine not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidDates     = errors.New("expiry date must be a valid date after the manufacture date")
	ErrInvalidBatch     = errors.New("invalid batch")
)

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Service struct {
	db       *sqlx.DB
	audit    AuditRecorder
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewService(db *sqlx.DB, recorder AuditRecorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, audit: recorder, log: log, validate: validator.New(), now: time.Now}
}

// BatchView is a stock batch joined with its medicine, as shown at the till
// and in alert lists.
type BatchView struct {
	BatchID         int64  `db:"batch_id" json:"batch_id"`
	BatchNumber     string `db:"batch_number" json:"batch_number"`
	ExpiryDate      string `db:"expiry_date" json:"expiry_date"`
	CurrentQuantity int64  `db:"current_quantity" json:"current_quantity"`
	MedicineID      int64  `db:"medicine_id" json:"medicine_id"`
	MedicineName    string `db:"medicine_name" json:"medicine_name"`
	GenericName     string `db:"generic_name" json:"generic_name"`
	Brand           string `db:"brand" json:"brand"`
	Strength        string `db:"strength" json:"strength"`
	Barcode         string `db:"barcode" json:"barcode"`
	BaseUnitID      int64  `db:"base_unit_id" json:"base_unit_id"`
	BaseUnit        string `db:"base_unit" json:"base_unit"`
	StockStatus     string `db:"-" json:"stock_status"`
}

const batchViewColumns = `SELECT sb.id AS batch_id, sb.batch_number, sb.expiry_date, sb.current_quantity,
	m.id AS medicine_id, m.name AS medicine_name, m.generic_name, m.brand, m.strength, m.barcode,
	m.base_unit_id, u.name AS base_unit
	FROM stock_batches sb
	JOIN medicines m ON m.id = sb.medicine_id
	JOIN medicine_units u ON u.id = m.base_unit_id`

func (s *Service) selectViews(ctx context.Context, query string, threshold int64, args ...any) ([]BatchView, error) {
	views := []BatchView{}
	if err := s.db.SelectContext(ctx, &views, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range views {
		views[i].ExpiryDate = domain.DateOnly(views[i].ExpiryDate)
		views[i].StockStatus = domain.StockStatus(views[i].CurrentQuantity, threshold)
	}
	return views, nil
}

// SearchBatches returns sellable batches in a shop whose medicine matches
// query, ordered by medicine name and then earliest expiry first.
func (s *Service) SearchBatches(ctx context.Context, shopID int64, query string, limit int) ([]BatchView, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	q := batchViewColumns + `
	WHERE sb.shop_id = ? AND sb.is_active = TRUE AND m.is_active = TRUE
	AND sb.current_quantity > 0 AND sb.expiry_date > ?`
	args := []any{shopID, s.now().Format(dateLayout)}

	query = strings.TrimSpace(query)
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q += ` AND (LOWER(m.name) LIKE ? OR LOWER(m.generic_name) LIKE ? OR LOWER(m.brand) LIKE ? OR m.barcode = ?)`
		args = append(args, like, like, like, query)
	}
	q += ` ORDER BY m.name, sb.expiry_date LIMIT ?`
	args = append(args, limit)

	views, err := s.selectViews(ctx, q, domain.DefaultLowStockThreshold, args...)
	if err != nil {
		return nil, fmt.Errorf("search batches: %w", err)
	}
	return views, nil
}

// UnitsForMedicine lists the units a medicine can be sold in: its base unit
// first, then every active conversion ordered by size.
func (s *Service) UnitsForMedicine(ctx context.Context, medicineID int64) ([]domain.SaleUnit, error) {
	var base domain.SaleUnit
	err := s.db.GetContext(ctx, &base, s.db.Rebind(`SELECT u.id, u.name, 1 AS conversion_factor,
		COALESCE((SELECT uc.selling_price FROM unit_conversions uc
			WHERE uc.medicine_id = m.id AND uc.to_unit_id = m.base_unit_id AND uc.is_active = TRUE LIMIT 1), 0) AS selling_price
		FROM medicines m JOIN medicine_units u ON u.id = m.base_unit_id
		WHERE m.id = ? AND m.is_active = TRUE`), medicineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMedicineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load base unit: %w", err)
	}

	var rest []domain.SaleUnit
	err = s.db.SelectContext(ctx, &rest, s.db.Rebind(`SELECT u.id, u.name, uc.conversion_factor, uc.selling_price
		FROM unit_conversions uc JOIN medicine_units u ON u.id = uc.to_unit_id
		WHERE uc.medicine_id = ? AND uc.is_active = TRUE AND uc.to_unit_id <> ?
		ORDER BY uc.conversion_factor, u.name`), medicineID, base.ID)
	if err != nil {
		return nil, fmt.Errorf("load unit conversions: %w", err)
	}
	return append([]domain.SaleUnit{base}, rest...), nil
}

// NewBatch describes stock received from a supplier. Quantity is in base units.
type NewBatch struct {
	ShopID          int64           `json:"shop_id" validate:"required,gt=0"`
	MedicineID      int64           `json:"medicine_id" validate:"required,gt=0"`
	BatchNumber     string          `json:"batch_number" validate:"required,max=64"`
	SupplierID      *int64          `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	ManufactureDate string          `json:"manufacture_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate      string          `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	Quantity        int64           `json:"quantity" validate:"gt=0"`
}

func (s *Service) checkNewBatch(b *NewBatch) error {
	b.BatchNumber = strings.TrimSpace(b.BatchNumber)
	if err := s.validate.Struct(b); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			switch fieldErrs[0].Field() {
			case "Quantity":
				return ErrInvalidQuantity
			case "ExpiryDate", "ManufactureDate":
				return ErrInvalidDates
			}
			return fmt.Errorf("%w: %s failed %s", ErrInvalidBatch, strings.ToLower(fieldErrs[0].Field()), fieldErrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	if b.ManufactureDate != "" && b.ExpiryDate <= b.ManufactureDate {
		return ErrInvalidDates
	}
	if b.PurchasePrice.IsNegative() {
		return fmt.Errorf("%w: purchase price cannot be negative", ErrInvalidBatch)
	}
	return nil
}

// ReceiveBatch stores a new batch with its full quantity on hand.
func (s *Service) ReceiveBatch(ctx context.Context, b NewBatch) (domain.StockBatch, error) {
	if err := s.checkNewBatch(&b); err != nil {
		return domain.StockBatch{}, err
	}

	var exists bool
	err := s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) > 0 FROM shops WHERE id = ? AND is_active = TRUE`), b.ShopID)
	if err != nil {
		return domain.StockBatch{}, fmt.Errorf("check shop: %w", err)
	}
	if !exists {
		return domain.StockBatch{}, ErrShopNotFound
	}

	err = s.db.GetContext(ctx, &exists, s.db.Rebind(`SELECT COUNT(*) > 0 FROM medicines WHERE id = ? AND is_active = TRUE`), b.MedicineID)
	if err != nil {
		return domain.StockBatch{}, fmt.Errorf("check medicine: %w", err)
	}
	if !exists {
		return domain.StockBatch{}, ErrMedicineNotFound
	}

	var manufactured *string
	if b.ManufactureDate != "" {
		manufactured = &b.ManufactureDate
	}

	var id int64
	stamp := s.stamp()
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO stock_batches (shop_id, medicine_id, batch_number, supplier_id,
		manufacture_date, expiry_date, purchase_price, base_unit_quantity, current_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		b.ShopID, b.MedicineID, b.BatchNumber, b.SupplierID, manufactured, b.ExpiryDate,
		b.PurchasePrice.Round(2), b.Quantity, b.Quantity, stamp, stamp).Scan(&id)
	if err != nil {
		return domain.StockBatch{}, fmt.Errorf("insert batch: %w", err)
	}

	s.record(ctx, b.ShopID, audit.ActionStockReceived, id)
	s.log.Info("stock received",
		zap.Int64("batch_id", id),
		zap.Int64("shop_id", b.ShopID),
		zap.Int64("medicine_id", b.MedicineID),
		zap.Int64("quantity", b.Quantity))

	return s.Batch(ctx, b.ShopID, id)
}

// Batch loads a batch owned by shopID.
func (s *Service) Batch(ctx context.Context, shopID, batchID int64) (domain.StockBatch, error) {
	var b domain.StockBatch
	err := s.db.GetContext(ctx, &b, s.db.Rebind(`SELECT * FROM stock_batches WHERE id = ? AND shop_id = ?`), batchID, shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBatchNotFound
	}
	if err != nil {
		return b, fmt.Errorf("load batch: %w", err)
	}
	b.ExpiryDate = domain.DateOnly(b.ExpiryDate)
	if b.ManufactureDate != nil {
		d := domain.DateOnly(*b.ManufactureDate)
		b.ManufactureDate = &d
	}
	return b, nil
}

// SetQuantity overwrites a batch's on-hand quantity. The new quantity cannot
// exceed what the batch was received with.
func (s *Service) SetQuantity(ctx context.Context, shopID, batchID, quantity int64) error {
	b, err := s.Batch(ctx, shopID, batchID)
	if err != nil {
		return err
	}
	if quantity < 0 || quantity > b.BaseUnitQuantity {
		return fmt.Errorf("%w: must be between 0 and %d", ErrInvalidQuantity, b.BaseUnitQuantity)
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE stock_batches SET current_quantity = ?, updated_at = ?
		WHERE id = ? AND shop_id = ?`), quantity, s.stamp(), batchID, shopID); err != nil {
		return fmt.Errorf("update batch quantity: %w", err)
	}

	s.record(ctx, shopID, audit.ActionStockAdjusted, batchID)
	s.log.Info("stock adjusted",
		zap.Int64("batch_id", batchID),
		zap.Int64("previous", b.CurrentQuantity),
		zap.Int64("quantity", quantity))
	return nil
}

// Deactivate hides a batch from sale and alerts without deleting its history.
func (s *Service) Deactivate(ctx context.Context, shopID, batchID int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE stock_batches SET is_active = FALSE, updated_at = ?
		WHERE id = ? AND shop_id = ? AND is_active = TRUE`), s.stamp(), batchID, shopID)
	if err != nil {
		return fmt.Errorf("deactivate batch: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("deactivate batch: %w", err)
	} else if n == 0 {
		return ErrBatchNotFound
	}

	s.record(ctx, shopID, audit.ActionStockDeactivated, batchID)
	s.log.Info("stock deactivated", zap.Int64("batch_id", batchID), zap.Int64("shop_id", shopID))
	return nil
}

// ExpiredBatches lists active batches with stock left on or past their expiry date.
func (s *Service) ExpiredBatches(ctx context.Context, shopID int64) ([]BatchView, error) {
	views, err := s.selectViews(ctx, batchViewColumns+`
		WHERE sb.shop_id = ? AND sb.is_active = TRUE AND sb.current_quantity > 0 AND sb.expiry_date <= ?
		ORDER BY sb.expiry_date, m.name`,
		domain.DefaultLowStockThreshold, shopID, s.now().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("load expired batches: %w", err)
	}
	return views, nil
}

// ExpiringBatch is a sellable batch with the whole days left before expiry.
type ExpiringBatch struct {
	BatchView
	DaysToExpiry int `json:"days_to_expiry"`
}

// ExpiringSoon lists sellable batches expiring within the given number of
// days, soonest first. Batches already expired are reported by ExpiredBatches.
func (s *Service) ExpiringSoon(ctx context.Context, shopID int64, days int) ([]ExpiringBatch, error) {
	if days <= 0 {
		days = DefaultExpiryDays
	}
	if days > maxExpiryDays {
		days = maxExpiryDays
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	views, err := s.selectViews(ctx, batchViewColumns+`
		WHERE sb.shop_id = ? AND sb.is_active = TRUE AND sb.current_quantity > 0
		AND sb.expiry_date > ? AND sb.expiry_date <= ?
		ORDER BY sb.expiry_date, m.name`,
		domain.DefaultLowStockThreshold, shopID, today.Format(dateLayout), today.AddDate(0, 0, days).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("load expiring batches: %w", err)
	}

	out := make([]ExpiringBatch, 0, len(views))
	for _, v := range views {
		expiry, err := time.Parse(dateLayout, v.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("batch %d expiry %q: %w", v.BatchID, v.ExpiryDate, err)
		}
		out = append(out, ExpiringBatch{BatchView: v, DaysToExpiry: int(expiry.Sub(today).Hours() / 24)})
	}
	return out, nil
}

// LowStockBatches lists sellable batches at or below threshold, emptiest first.
func (s *Service) LowStockBatches(ctx context.Context, shopID, threshold int64) ([]BatchView, error) {
	if threshold <= 0 {
		threshold = domain.DefaultLowStockThreshold
	}
	views, err := s.selectViews(ctx, batchViewColumns+`
		WHERE sb.shop_id = ? AND sb.is_active = TRUE AND sb.current_quantity <= ? AND sb.expiry_date > ?
		ORDER BY sb.current_quantity, m.name`,
		threshold, shopID, threshold, s.now().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("load low stock batches: %w", err)
	}
	return views, nil
}

func (s *Service) record(ctx context.Context, shopID int64, action string, batchID int64) {
	if s.audit == nil {
		return
	}
	entry := audit.Entry{ShopID: &shopID, Action: action, Module: "inventory", RecordID: &batchID, CreatedAt: s.stamp()}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("audit entry not recorded", zap.String("action", action), zap.Int64("batch_id", batchID), zap.Error(err))
	}
}

func (s *Service) stamp() string {
	return s.now().Format(audit.TimestampLayout)
}
