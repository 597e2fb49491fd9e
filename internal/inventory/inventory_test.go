package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/m/domain"
	"pharmapos/m/internal/audit"
	"pharmapos/m/internal/testutil"
)

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	shopID  int64
	other   int64
	tablet  int64
	panadol int64
	brufen  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{db: db}
	f.shopID = testutil.Shop(t, db, "Main Street", "MAIN")
	f.other = testutil.Shop(t, db, "Airport", "AIR")
	f.tablet = testutil.Unit(t, db, "tablet")
	f.panadol = testutil.Medicine(t, db, "Panadol", f.tablet)
	f.brufen = testutil.Medicine(t, db, "Brufen", f.tablet)
	f.svc = NewService(db, audit.NewRecorder(db), nil)
	f.svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestSearchBatches(t *testing.T) {
	f := newFixture(t)
	late := testutil.Batch(t, f.db, f.shopID, f.panadol, 40, "2028-06-30")
	early := testutil.Batch(t, f.db, f.shopID, f.panadol, 8, "2027-01-31")
	brufen := testutil.Batch(t, f.db, f.shopID, f.brufen, 15, testutil.FarExpiry)
	// Not sellable: empty, expiring today, another shop's.
	testutil.Batch(t, f.db, f.shopID, f.panadol, 0, testutil.FarExpiry)
	testutil.Batch(t, f.db, f.shopID, f.panadol, 30, "2026-10-19")
	testutil.Batch(t, f.db, f.other, f.panadol, 30, testutil.FarExpiry)
	ctx := context.Background()

	t.Run("orders by medicine then earliest expiry", func(t *testing.T) {
		views, err := f.svc.SearchBatches(ctx, f.shopID, "", 0)
		require.NoError(t, err)
		require.Len(t, views, 3)
		assert.Equal(t, brufen, views[0].BatchID)
		assert.Equal(t, early, views[1].BatchID)
		assert.Equal(t, late, views[2].BatchID)
		assert.Equal(t, "2027-01-31", views[1].ExpiryDate)
		assert.Equal(t, "tablet", views[1].BaseUnit)
	})

	t.Run("classifies stock status", func(t *testing.T) {
		views, err := f.svc.SearchBatches(ctx, f.shopID, "pana", 0)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, domain.StockLow, views[0].StockStatus)
		assert.Equal(t, domain.StockInStock, views[1].StockStatus)
	})

	t.Run("matches generic name and barcode", func(t *testing.T) {
		views, err := f.svc.SearchBatches(ctx, f.shopID, "BRUFEN GENERIC", 0)
		require.NoError(t, err)
		require.Len(t, views, 1)

		views, err = f.svc.SearchBatches(ctx, f.shopID, "BC-Panadol", 0)
		require.NoError(t, err)
		assert.Len(t, views, 2)
	})

	t.Run("respects limit", func(t *testing.T) {
		views, err := f.svc.SearchBatches(ctx, f.shopID, "", 1)
		require.NoError(t, err)
		assert.Len(t, views, 1)
	})

	t.Run("no match returns empty slice", func(t *testing.T) {
		views, err := f.svc.SearchBatches(ctx, f.shopID, "aspirin", 0)
		require.NoError(t, err)
		assert.NotNil(t, views)
		assert.Empty(t, views)
	})
}

func TestUnitsForMedicine(t *testing.T) {
	f := newFixture(t)
	strip := testutil.Unit(t, f.db, "strip")
	box := testutil.Unit(t, f.db, "box")
	testutil.Conversion(t, f.db, f.panadol, f.tablet, box, 100, "420.00")
	testutil.Conversion(t, f.db, f.panadol, f.tablet, strip, 10, "45.00")
	testutil.Conversion(t, f.db, f.panadol, f.tablet, f.tablet, 1, "4.50")

	units, err := f.svc.UnitsForMedicine(context.Background(), f.panadol)
	require.NoError(t, err)
	require.Len(t, units, 3)

	assert.Equal(t, f.tablet, units[0].ID)
	assert.EqualValues(t, 1, units[0].Factor)
	assert.Equal(t, "4.50", units[0].Price.StringFixed(2))
	assert.Equal(t, "strip", units[1].Name)
	assert.EqualValues(t, 10, units[1].Factor)
	assert.Equal(t, "box", units[2].Name)
	assert.Equal(t, "420.00", units[2].Price.StringFixed(2))

	units, err = f.svc.UnitsForMedicine(context.Background(), f.brufen)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.True(t, units[0].Price.IsZero())

	_, err = f.svc.UnitsForMedicine(context.Background(), 999)
	assert.ErrorIs(t, err, ErrMedicineNotFound)
}

func TestReceiveBatch(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithActor(context.Background(), 42)

	b, err := f.svc.ReceiveBatch(ctx, NewBatch{
		ShopID:          f.shopID,
		MedicineID:      f.panadol,
		BatchNumber:     " LOT-77 ",
		ManufactureDate: "2026-01-01",
		ExpiryDate:      "2028-01-01",
		PurchasePrice:   decimal.RequireFromString("3.20"),
		Quantity:        500,
	})
	require.NoError(t, err)
	assert.Equal(t, "LOT-77", b.BatchNumber)
	assert.EqualValues(t, 500, b.BaseUnitQuantity)
	assert.EqualValues(t, 500, b.CurrentQuantity)
	assert.True(t, b.IsActive)
	assert.Equal(t, "2028-01-01", b.ExpiryDate)
	require.NotNil(t, b.ManufactureDate)
	assert.Equal(t, "2026-01-01", *b.ManufactureDate)
	assert.Equal(t, "2026-10-19 12:00:00", b.CreatedAt)
	assert.Equal(t, b.CreatedAt, b.UpdatedAt)

	entries, err := audit.NewRecorder(f.db).Recent(context.Background(), f.shopID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionStockReceived, entries[0].Action)
	assert.EqualValues(t, 42, entries[0].UserID)
	assert.Equal(t, b.CreatedAt, entries[0].CreatedAt)
}

func TestReceiveBatchRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	valid := func() NewBatch {
		return NewBatch{ShopID: f.shopID, MedicineID: f.panadol, BatchNumber: "LOT-1", ExpiryDate: "2028-01-01", Quantity: 10}
	}

	cases := []struct {
		name   string
		mutate func(*NewBatch)
		want   error
	}{
		{"zero quantity", func(b *NewBatch) { b.Quantity = 0 }, ErrInvalidQuantity},
		{"malformed expiry", func(b *NewBatch) { b.ExpiryDate = "01/01/2028" }, ErrInvalidDates},
		{"expiry before manufacture", func(b *NewBatch) { b.ManufactureDate = "2028-02-01" }, ErrInvalidDates},
		{"missing batch number", func(b *NewBatch) { b.BatchNumber = "  " }, ErrInvalidBatch},
		{"negative price", func(b *NewBatch) { b.PurchasePrice = decimal.NewFromInt(-1) }, ErrInvalidBatch},
		{"unknown medicine", func(b *NewBatch) { b.MedicineID = 999 }, ErrMedicineNotFound},
		{"unknown shop", func(b *NewBatch) { b.ShopID = 999 }, ErrShopNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := valid()
			tc.mutate(&b)
			_, err := f.svc.ReceiveBatch(context.Background(), b)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, testutil.Count(t, f.db, "stock_batches"))
}

func TestSetQuantity(t *testing.T) {
	f := newFixture(t)
	batch := testutil.Batch(t, f.db, f.shopID, f.panadol, 20, testutil.FarExpiry)
	ctx := context.Background()

	require.NoError(t, f.svc.SetQuantity(ctx, f.shopID, batch, 7))
	assert.EqualValues(t, 7, testutil.Quantity(t, f.db, batch))

	require.NoError(t, f.svc.SetQuantity(ctx, f.shopID, batch, 20))
	require.NoError(t, f.svc.SetQuantity(ctx, f.shopID, batch, 0))
	assert.EqualValues(t, 0, testutil.Quantity(t, f.db, batch))

	assert.ErrorIs(t, f.svc.SetQuantity(ctx, f.shopID, batch, 21), ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.SetQuantity(ctx, f.shopID, batch, -1), ErrInvalidQuantity)
	assert.ErrorIs(t, f.svc.SetQuantity(ctx, f.other, batch, 5), ErrBatchNotFound)
	assert.ErrorIs(t, f.svc.SetQuantity(ctx, f.shopID, 999, 5), ErrBatchNotFound)
	assert.EqualValues(t, 0, testutil.Quantity(t, f.db, batch))
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t)
	batch := testutil.Batch(t, f.db, f.shopID, f.panadol, 20, testutil.FarExpiry)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Deactivate(ctx, f.other, batch), ErrBatchNotFound)
	require.NoError(t, f.svc.Deactivate(ctx, f.shopID, batch))
	assert.ErrorIs(t, f.svc.Deactivate(ctx, f.shopID, batch), ErrBatchNotFound)

	views, err := f.svc.SearchBatches(ctx, f.shopID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Equal(t, 1, testutil.Count(t, f.db, "stock_batches"))
}

func TestAlerts(t *testing.T) {
	f := newFixture(t)
	expired := testutil.Batch(t, f.db, f.shopID, f.panadol, 12, "2026-09-30")
	today := testutil.Batch(t, f.db, f.shopID, f.brufen, 3, "2026-10-19")
	low := testutil.Batch(t, f.db, f.shopID, f.panadol, 4, testutil.FarExpiry)
	lower := testutil.Batch(t, f.db, f.shopID, f.brufen, 0, testutil.FarExpiry)
	testutil.Batch(t, f.db, f.shopID, f.panadol, 80, testutil.FarExpiry)
	testutil.Batch(t, f.db, f.other, f.panadol, 1, "2026-01-01")
	ctx := context.Background()

	views, err := f.svc.ExpiredBatches(ctx, f.shopID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, expired, views[0].BatchID)
	assert.Equal(t, today, views[1].BatchID)

	views, err = f.svc.LowStockBatches(ctx, f.shopID, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, lower, views[0].BatchID)
	assert.Equal(t, domain.StockOutOfStock, views[0].StockStatus)
	assert.Equal(t, low, views[1].BatchID)
	assert.Equal(t, domain.StockLow, views[1].StockStatus)

	views, err = f.svc.LowStockBatches(ctx, f.shopID, 2)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, lower, views[0].BatchID)
}

func TestExpiringSoon(t *testing.T) {
	f := newFixture(t)
	testutil.Batch(t, f.db, f.shopID, f.panadol, 5, "2026-10-19")
	tomorrow := testutil.Batch(t, f.db, f.shopID, f.brufen, 5, "2026-10-20")
	edge := testutil.Batch(t, f.db, f.shopID, f.panadol, 5, "2026-11-18")
	testutil.Batch(t, f.db, f.shopID, f.panadol, 5, "2026-11-19")
	testutil.Batch(t, f.db, f.shopID, f.panadol, 0, "2026-10-25")
	testutil.Batch(t, f.db, f.other, f.panadol, 5, "2026-10-25")
	ctx := context.Background()

	batches, err := f.svc.ExpiringSoon(ctx, f.shopID, 0)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, tomorrow, batches[0].BatchID)
	assert.Equal(t, 1, batches[0].DaysToExpiry)
	assert.Equal(t, edge, batches[1].BatchID)
	assert.Equal(t, 30, batches[1].DaysToExpiry)

	batches, err = f.svc.ExpiringSoon(ctx, f.shopID, 7)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "Brufen", batches[0].MedicineName)
}
