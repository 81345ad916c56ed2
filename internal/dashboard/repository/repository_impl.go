package repository

import (
	"context"
	"time"

	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) LinkTotals(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (domain.LinkTotals, error) {
	var totals domain.LinkTotals
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS total_links,
		        COALESCE(SUM(click_count), 0) AS total_clicks,
		        COALESCE(SUM(conversions), 0) AS total_conversions,
		        COALESCE(SUM(revenue), 0) AS total_revenue,
		        COALESCE(SUM(commission), 0) AS total_commission
		 FROM affiliate_links
		 WHERE kol_id = ? AND created_at >= ? AND created_at < ?`,
		kolID, from, to,
	).Scan(&totals).Error
	if err != nil {
		return domain.LinkTotals{}, err
	}
	return totals, nil
}

func (r *repo) CommissionsByStatus(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) ([]ledgerdomain.StatusTotal, error) {
	var rows []ledgerdomain.StatusTotal
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count, COALESCE(SUM(commission), 0) AS amount
		 FROM affiliate_orders
		 WHERE kol_id = ? AND created_at >= ? AND created_at < ?
		 GROUP BY status`,
		kolID, from, to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) EarnedCommission(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (float64, error) {
	var total float64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(commission), 0)
		 FROM affiliate_orders
		 WHERE kol_id = ? AND status = ? AND confirmed_at >= ? AND confirmed_at < ?`,
		kolID, string(ledgerdomain.StatusCompleted), from, to,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) TopLinks(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time, limit int) ([]linkdomain.Link, error) {
	var links []linkdomain.Link
	err := db.WithContext(ctx).Raw(
		`SELECT id, kol_id, product_id, short_code, original_url, short_url, platform,
		        click_count, conversions, revenue, commission, expires_at, created_at, updated_at
		 FROM affiliate_links
		 WHERE kol_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY revenue DESC, id DESC
		 LIMIT ?`,
		kolID, from, to, limit,
	).Scan(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}
