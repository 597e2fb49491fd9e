package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/m/internal/database"
	"pharmapos/m/internal/migrations"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	return NewRecorder(db)
}

func TestRecordCarriesClientAndActor(t *testing.T) {
	r := newTestRecorder(t)
	shopID, recordID := int64(3), int64(77)
	ctx := WithActor(WithClient(context.Background(), "10.0.0.8", "till/1.0"), 12)

	require.NoError(t, r.Record(ctx, Entry{ShopID: &shopID, Action: ActionStockAdjusted, Module: "inventory", RecordID: &recordID}))
	require.NoError(t, r.Record(ctx, Entry{UserID: 5, ShopID: &shopID, Action: ActionSaleCompleted, Module: "sales", IPAddress: "192.168.1.2"}))
	other := int64(4)
	require.NoError(t, r.Record(context.Background(), Entry{UserID: 1, ShopID: &other, Action: ActionLogin, Module: "auth"}))

	entries, err := r.Recent(context.Background(), shopID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ActionSaleCompleted, entries[0].Action)
	assert.EqualValues(t, 5, entries[0].UserID)
	assert.Equal(t, "192.168.1.2", entries[0].IPAddress)
	assert.Equal(t, "till/1.0", entries[0].UserAgent)
	assert.Nil(t, entries[0].RecordID)

	assert.Equal(t, ActionStockAdjusted, entries[1].Action)
	assert.EqualValues(t, 12, entries[1].UserID)
	assert.Equal(t, "10.0.0.8", entries[1].IPAddress)
	require.NotNil(t, entries[1].RecordID)
	assert.EqualValues(t, 77, *entries[1].RecordID)

	entries, err = r.Recent(context.Background(), shopID, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRecordStampsCreatedAt(t *testing.T) {
	r := newTestRecorder(t)
	r.now = func() time.Time { return time.Date(2026, 10, 19, 14, 5, 0, 0, time.UTC) }
	shopID := int64(3)

	require.NoError(t, r.Record(context.Background(), Entry{UserID: 1, ShopID: &shopID, Action: ActionLogin, Module: "auth"}))
	require.NoError(t, r.Record(context.Background(), Entry{UserID: 1, ShopID: &shopID, Action: ActionSaleCompleted, Module: "sales",
		CreatedAt: "2026-10-19 09:30:00"}))

	entries, err := r.Recent(context.Background(), shopID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "2026-10-19 09:30:00", entries[0].CreatedAt)
	assert.Equal(t, "2026-10-19 14:05:00", entries[1].CreatedAt)
}
