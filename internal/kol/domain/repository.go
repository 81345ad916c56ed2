package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Kol, error)
	// ListApprovedIDs pages approved KOLs in id order after afterID.
	ListApprovedIDs(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]int64, error)
	UpdateTier(ctx context.Context, db *gorm.DB, update TierUpdate) error
	UpdateTotalSales(ctx context.Context, db *gorm.DB, id int64, totalSales float64) error
}
