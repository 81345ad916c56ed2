package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, row *domain.AffiliateOrder) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO affiliate_orders (
			id, kol_id, order_id, product_id, link_id, click_id, quantity, unit_price, revenue,
			commission_rate, commission, status, attribution_type, reason, metadata,
			confirmed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.KolID,
		row.OrderID,
		row.ProductID,
		row.LinkID,
		row.ClickID,
		row.Quantity,
		row.UnitPrice,
		row.Revenue,
		row.CommissionRate,
		row.Commission,
		string(row.Status),
		string(row.AttributionType),
		row.Reason,
		row.Metadata,
		row.ConfirmedAt,
		row.CreatedAt,
		row.UpdatedAt,
	).Error
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]domain.AffiliateOrder, error) {
	var rows []domain.AffiliateOrder
	err := db.WithContext(ctx).Raw(
		`SELECT id, kol_id, order_id, product_id, link_id, click_id, quantity, unit_price, revenue,
		        commission_rate, commission, status, attribution_type, reason, metadata,
		        confirmed_at, created_at, updated_at
		 FROM affiliate_orders
		 WHERE order_id = ?
		 ORDER BY kol_id ASC, id ASC`,
		orderID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) AttachClick(ctx context.Context, db *gorm.DB, id, clickID int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE affiliate_orders SET click_id = ? WHERE id = ? AND click_id IS NULL`,
		clickID,
		id,
	).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, orderID string, from, to domain.Status, confirmedAt *time.Time, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE affiliate_orders
		 SET status = ?, confirmed_at = COALESCE(?, confirmed_at), updated_at = ?
		 WHERE order_id = ? AND status = ?`,
		string(to), confirmedAt, at, orderID, string(from),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) CompletedRevenue(ctx context.Context, db *gorm.DB, kolID int64) (float64, error) {
	var total float64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(revenue), 0) FROM affiliate_orders WHERE kol_id = ? AND status = ?`,
		kolID, string(domain.StatusCompleted),
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) TotalsByStatus(ctx context.Context, db *gorm.DB, kolID int64) ([]domain.StatusTotal, error) {
	query := `SELECT status, COUNT(*) AS count, COALESCE(SUM(commission), 0) AS amount
		FROM affiliate_orders`
	var args []any
	if kolID != 0 {
		query += ` WHERE kol_id = ?`
		args = append(args, kolID)
	}
	query += ` GROUP BY status`

	var rows []domain.StatusTotal
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Window(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (domain.WindowTotals, error) {
	query := `SELECT COALESCE(SUM(revenue), 0) AS revenue,
		COUNT(*) AS commission_count,
		COALESCE(SUM(commission), 0) AS commission_amount
		FROM affiliate_orders
		WHERE status <> ? AND created_at >= ? AND created_at < ?`
	args := []any{string(domain.StatusCancelled), from, to}
	if kolID != 0 {
		query += ` AND kol_id = ?`
		args = append(args, kolID)
	}

	var totals domain.WindowTotals
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&totals).Error; err != nil {
		return domain.WindowTotals{}, err
	}
	return totals, nil
}
