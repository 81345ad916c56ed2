package repository

import (
	"context"
	"strings"

	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"gorm.io/gorm"
)

const completedSalesExpr = `COALESCE(SUM(o.revenue), 0)`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Candidates(ctx context.Context, db *gorm.DB, table domain.Table, limit int) ([]domain.Candidate, error) {
	if len(table) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(table))
	args := []any{ledgerdomain.StatusCompleted, true, koldomain.StatusApproved}
	for _, t := range table {
		conds = append(conds, "("+completedSalesExpr+" >= ? AND u.kol_commission_rate < ?)")
		args = append(args, t.MinSales, t.RatePercent)
	}
	args = append(args, limit)

	var out []domain.Candidate
	err := db.WithContext(ctx).Raw(
		`SELECT u.id AS kol_id,
		        COALESCE(u.kol_tier, '') AS current_tier,
		        u.kol_commission_rate AS current_rate,
		        u.total_sales AS stored_sales,
		        `+completedSalesExpr+` AS completed_sales
		 FROM users u
		 LEFT JOIN affiliate_orders o ON o.kol_id = u.id AND o.status = ?
		 WHERE u.is_kol = ? AND u.kol_status = ?
		 GROUP BY u.id, u.kol_tier, u.kol_commission_rate, u.total_sales
		 HAVING `+strings.Join(conds, " OR ")+`
		 ORDER BY completed_sales DESC, u.id ASC
		 LIMIT ?`,
		args...,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) Statistics(ctx context.Context, db *gorm.DB) ([]domain.Statistic, error) {
	var out []domain.Statistic
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(kol_tier, '') AS tier,
		        COUNT(*) AS count,
		        COALESCE(AVG(total_sales), 0) AS avg_sales,
		        COALESCE(SUM(total_sales), 0) AS total_sales,
		        COALESCE(MIN(total_sales), 0) AS min_sales,
		        COALESCE(MAX(total_sales), 0) AS max_sales
		 FROM users
		 WHERE is_kol = ? AND kol_status = ?
		 GROUP BY COALESCE(kol_tier, '')
		 ORDER BY tier ASC`,
		true,
		koldomain.StatusApproved,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
