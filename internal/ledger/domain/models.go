package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the lifecycle state of a commission ledger row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusCompleted, StatusCancelled:
		return Status(raw), true
	default:
		return "", false
	}
}

// CanTransition reports whether a row may move from one status to another.
// Only pending rows move, and only forward.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusCompleted || to == StatusCancelled)
}

type AttributionType string

const (
	AttributionSpecific AttributionType = "specific"
	AttributionGeneral  AttributionType = "general"
)

// AffiliateOrder is one attributed order line. Rate and commission are
// snapshots taken at attribution time and never recomputed.
type AffiliateOrder struct {
	ID              int64             `json:"id" gorm:"primaryKey"`
	KolID           int64             `json:"kol_id" gorm:"column:kol_id"`
	OrderID         string            `json:"order_id" gorm:"column:order_id"`
	ProductID       int64             `json:"product_id" gorm:"column:product_id"`
	LinkID          int64             `json:"link_id" gorm:"column:link_id"`
	ClickID         *int64            `json:"click_id,omitempty" gorm:"column:click_id"`
	Quantity        int               `json:"quantity" gorm:"column:quantity"`
	UnitPrice       float64           `json:"unit_price" gorm:"column:unit_price"`
	Revenue         float64           `json:"revenue" gorm:"column:revenue"`
	CommissionRate  float64           `json:"commission_rate" gorm:"column:commission_rate"`
	Commission      float64           `json:"commission" gorm:"column:commission"`
	Status          Status            `json:"status" gorm:"column:status"`
	AttributionType AttributionType   `json:"attribution_type" gorm:"column:attribution_type"`
	Reason          string            `json:"reason" gorm:"column:reason"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty" gorm:"column:confirmed_at"`
	CreatedAt       time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (AffiliateOrder) TableName() string { return "affiliate_orders" }

// StatusTotal aggregates ledger rows of one status.
type StatusTotal struct {
	Status Status  `gorm:"column:status"`
	Count  int64   `gorm:"column:count"`
	Amount float64 `gorm:"column:amount"`
}

// WindowTotals aggregates non-cancelled rows created inside a time window.
type WindowTotals struct {
	Revenue          float64 `gorm:"column:revenue"`
	CommissionCount  int64   `gorm:"column:commission_count"`
	CommissionAmount float64 `gorm:"column:commission_amount"`
}
