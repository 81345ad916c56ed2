package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	// Append validates and inserts a pending row inside the caller's
	// transaction.
	Append(ctx context.Context, tx *gorm.DB, entry NewEntry) (*AffiliateOrder, error)
	// AttachClick links a row to the click it converted, inside tx.
	AttachClick(ctx context.Context, tx *gorm.DB, id, clickID int64) error
	ListByOrder(ctx context.Context, orderID string) ([]AffiliateOrder, error)
	// Transition moves every pending row of an order to status and keeps the
	// link counters aligned with non-cancelled rows.
	Transition(ctx context.Context, orderID string, to Status) (*TransitionResult, error)

	CompletedRevenue(ctx context.Context, kolID int64) (float64, error)
	TotalsByStatus(ctx context.Context, kolID int64) (map[Status]StatusTotal, error)
	Window(ctx context.Context, kolID int64, from, to time.Time) (WindowTotals, error)
}

type NewEntry struct {
	KolID           int64
	OrderID         string
	ProductID       int64
	LinkID          int64
	ClickID         *int64
	Quantity        int
	UnitPrice       float64
	Revenue         float64
	CommissionRate  float64
	Commission      float64
	AttributionType AttributionType
	Reason          string
	Metadata        map[string]any
}

type TransitionResult struct {
	OrderID string  `json:"orderId"`
	Status  Status  `json:"status"`
	Rows    int64   `json:"rows"`
	KolIDs  []int64 `json:"-"`
}

var (
	ErrNotFound          = errors.New("ledger_order_not_found")
	ErrDuplicateEntry    = errors.New("ledger_duplicate_entry")
	ErrInvalidTransition = errors.New("invalid_status_transition")
	ErrInvalidOrderID    = errors.New("invalid_order_id")
	ErrInvalidEntry      = errors.New("invalid_ledger_entry")
)
