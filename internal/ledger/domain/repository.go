package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, row *AffiliateOrder) error
	ListByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]AffiliateOrder, error)
	AttachClick(ctx context.Context, db *gorm.DB, id, clickID int64) error
	// UpdateStatus moves rows of an order that are still in from. It returns
	// the number of rows moved.
	UpdateStatus(ctx context.Context, db *gorm.DB, orderID string, from, to Status, confirmedAt *time.Time, at time.Time) (int64, error)

	// CompletedRevenue sums revenue of completed rows for a KOL.
	CompletedRevenue(ctx context.Context, db *gorm.DB, kolID int64) (float64, error)
	// TotalsByStatus aggregates commission per status; kolID 0 spans all KOLs.
	TotalsByStatus(ctx context.Context, db *gorm.DB, kolID int64) ([]StatusTotal, error)
	Window(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (WindowTotals, error)
}
