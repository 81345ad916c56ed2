package domain

import (
	"context"
	"time"

	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"gorm.io/gorm"
)

// Repository holds the dashboard's range-scoped aggregates. Ranges are
// half-open, [from, to).
type Repository interface {
	LinkTotals(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (LinkTotals, error)
	CommissionsByStatus(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) ([]ledgerdomain.StatusTotal, error)
	// EarnedCommission sums completed rows confirmed inside the range.
	EarnedCommission(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (float64, error)
	TopLinks(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time, limit int) ([]linkdomain.Link, error)
}
