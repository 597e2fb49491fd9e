package sales

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// CheckAvailability reports whether active, unexpired batches of a medicine
// in a shop hold at least required base units in total.
func (p *Processor) CheckAvailability(ctx context.Context, shopID, medicineID, required int64) (bool, error) {
	available, err := availableQuantity(ctx, p.db, shopID, medicineID, p.now())
	if err != nil {
		return false, err
	}
	return available >= required, nil
}

func availableQuantity(ctx context.Context, db *sqlx.DB, shopID, medicineID int64, now time.Time) (int64, error) {
	var total int64
	err := db.GetContext(ctx, &total, db.Rebind(`SELECT COALESCE(SUM(current_quantity), 0) FROM stock_batches
		WHERE shop_id = ? AND medicine_id = ? AND is_active = TRUE AND expiry_date > ?`),
		shopID, medicineID, now.Format(dateLayout))
	if err != nil {
		return 0, storeErr("sum available stock", err)
	}
	return total, nil
}
