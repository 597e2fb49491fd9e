// Package audit appends entries to the activity log.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	ActionSaleCompleted    = "sale_completed"
	ActionStockReceived    = "stock_received"
	ActionStockAdjusted    = "stock_adjusted"
	ActionStockDeactivated = "stock_deactivated"
	ActionLogin            = "login"

	// TimestampLayout is how created_at is written; callers stamping their own
	// entries use it so related rows compare equal.
	TimestampLayout = "2006-01-02 15:04:05"
)

type Entry struct {
	UserID    int64  `db:"user_id" json:"user_id"`
	ShopID    *int64 `db:"shop_id" json:"shop_id,omitempty"`
	Action    string `db:"action" json:"action"`
	Module    string `db:"module" json:"module"`
	RecordID  *int64 `db:"record_id" json:"record_id,omitempty"`
	IPAddress string `db:"ip_address" json:"ip_address"`
	UserAgent string `db:"user_agent" json:"user_agent"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

type (
	clientKey struct{}
	actorKey  struct{}
)

type client struct {
	ip, userAgent string
}

// WithClient attaches the caller's address and user agent to ctx so that
// entries recorded further down the call chain carry them.
func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{ip: ip, userAgent: userAgent})
}

// WithActor attaches the authenticated user to ctx. Entries recorded without
// a UserID are attributed to it.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// Recorder writes activity log rows. Writes are outside any business
// transaction; callers decide what to do with a failure.
type Recorder struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Record appends e to the activity log. An empty CreatedAt is stamped from
// the recorder's clock.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if c, ok := ctx.Value(clientKey{}).(client); ok {
		if e.IPAddress == "" {
			e.IPAddress = c.ip
		}
		if e.UserAgent == "" {
			e.UserAgent = c.userAgent
		}
	}
	if e.UserID == 0 {
		if id, ok := ctx.Value(actorKey{}).(int64); ok {
			e.UserID = id
		}
	}
	if e.CreatedAt == "" {
		e.CreatedAt = r.now().Format(TimestampLayout)
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO activity_logs (user_id, shop_id, action, module, record_id, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.UserID, e.ShopID, e.Action, e.Module, e.RecordID, e.IPAddress, e.UserAgent, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Action, err)
	}
	return nil
}

// Recent returns the latest entries for a shop, newest first.
func (r *Recorder) Recent(ctx context.Context, shopID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries := []Entry{}
	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(`SELECT user_id, shop_id, action, module, record_id, ip_address, user_agent, created_at
		FROM activity_logs WHERE shop_id = ? ORDER BY id DESC LIMIT ?`), shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	return entries, nil
}
