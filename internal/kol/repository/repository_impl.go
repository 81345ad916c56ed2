package repository

import (
	"context"

	"github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Kol, error) {
	var k domain.Kol
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, role, is_kol,
		        COALESCE(kol_status, '') AS kol_status,
		        COALESCE(kol_tier, '') AS kol_tier,
		        kol_commission_rate, total_sales, total_followers, kol_tier_updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&k).Error
	if err != nil {
		return nil, err
	}
	if k.ID == 0 {
		return nil, nil
	}
	return &k, nil
}

func (r *repo) ListApprovedIDs(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM users
		 WHERE is_kol = ? AND kol_status = ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		true,
		domain.StatusApproved,
		afterID,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpdateTier(ctx context.Context, db *gorm.DB, update domain.TierUpdate) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET kol_tier = ?, kol_commission_rate = ?, total_sales = ?, kol_tier_updated_at = ?
		 WHERE id = ?`,
		update.Tier,
		update.RatePercent,
		update.TotalSales,
		update.UpdatedAt,
		update.KolID,
	).Error
}

func (r *repo) UpdateTotalSales(ctx context.Context, db *gorm.DB, id int64, totalSales float64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET total_sales = ? WHERE id = ?`,
		totalSales,
		id,
	).Error
}
