package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"gorm.io/gorm"
)

const linkColumns = `id, kol_id, product_id, short_code, original_url, short_url, platform,
	click_count, conversions, revenue, commission, expires_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, link *domain.Link) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO affiliate_links (id, kol_id, product_id, short_code, original_url, short_url, platform,
		   click_count, conversions, revenue, commission, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, ?, ?, ?)`,
		link.ID,
		link.KolID,
		link.ProductID,
		link.ShortCode,
		link.OriginalURL,
		link.ShortURL,
		link.Platform,
		link.ExpiresAt,
		link.CreatedAt,
		link.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Link, error) {
	return r.findOne(ctx, db, `SELECT `+linkColumns+` FROM affiliate_links WHERE id = ?`, id)
}

func (r *repo) FindByShortCode(ctx context.Context, db *gorm.DB, shortCode string) (*domain.Link, error) {
	return r.findOne(ctx, db, `SELECT `+linkColumns+` FROM affiliate_links WHERE short_code = ?`, shortCode)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Link, error) {
	var link domain.Link
	if err := db.WithContext(ctx).Raw(query, arg).Scan(&link).Error; err != nil {
		return nil, err
	}
	if link.ID == 0 {
		return nil, nil
	}
	return &link, nil
}

func (r *repo) ListByKol(ctx context.Context, db *gorm.DB, kolID int64, after *domain.ListCursor, limit int) ([]domain.Link, error) {
	var items []domain.Link
	var err error
	if after == nil {
		err = db.WithContext(ctx).Raw(
			`SELECT `+linkColumns+` FROM affiliate_links
			 WHERE kol_id = ?
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			kolID, limit,
		).Scan(&items).Error
	} else {
		err = db.WithContext(ctx).Raw(
			`SELECT `+linkColumns+` FROM affiliate_links
			 WHERE kol_id = ? AND (created_at < ? OR (created_at = ? AND id < ?))
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			kolID, after.CreatedAt, after.CreatedAt, after.ID, limit,
		).Scan(&items).Error
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, kolID int64, now time.Time) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM affiliate_links WHERE (expires_at IS NULL OR expires_at > ?)`
	args := []any{now}
	if kolID != 0 {
		query += ` AND kol_id = ?`
		args = append(args, kolID)
	}
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) IncrementClicks(ctx context.Context, db *gorm.DB, linkID int64, at time.Time) error {
	return r.expectOne(db.WithContext(ctx).Exec(
		`UPDATE affiliate_links SET click_count = click_count + 1, updated_at = ? WHERE id = ?`,
		at, linkID,
	))
}

func (r *repo) AddConversion(ctx context.Context, db *gorm.DB, linkID int64, revenue, commission float64, at time.Time) error {
	return r.expectOne(db.WithContext(ctx).Exec(
		`UPDATE affiliate_links
		 SET conversions = conversions + 1,
		     revenue = revenue + ?,
		     commission = commission + ?,
		     updated_at = ?
		 WHERE id = ?`,
		revenue, commission, at, linkID,
	))
}

func (r *repo) RemoveConversion(ctx context.Context, db *gorm.DB, linkID int64, revenue, commission float64, at time.Time) error {
	return r.expectOne(db.WithContext(ctx).Exec(
		`UPDATE affiliate_links
		 SET conversions = CASE WHEN conversions > 0 THEN conversions - 1 ELSE 0 END,
		     revenue = revenue - ?,
		     commission = commission - ?,
		     updated_at = ?
		 WHERE id = ?`,
		revenue, commission, at, linkID,
	))
}

func (r *repo) LedgerCounters(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]domain.CounterSnapshot, error) {
	var rows []domain.CounterSnapshot
	err := db.WithContext(ctx).Raw(
		`SELECT l.id AS link_id,
		        (SELECT COUNT(*) FROM affiliate_clicks c WHERE c.link_id = l.id) AS click_count,
		        (SELECT COUNT(*) FROM affiliate_orders o WHERE o.link_id = l.id AND o.status <> 'cancelled') AS conversions,
		        (SELECT COALESCE(SUM(o.revenue), 0) FROM affiliate_orders o WHERE o.link_id = l.id AND o.status <> 'cancelled') AS revenue,
		        (SELECT COALESCE(SUM(o.commission), 0) FROM affiliate_orders o WHERE o.link_id = l.id AND o.status <> 'cancelled') AS commission,
		        l.click_count AS stored_click_count,
		        l.conversions AS stored_conversions,
		        l.revenue AS stored_revenue,
		        l.commission AS stored_commission
		 FROM affiliate_links l
		 WHERE l.id > ?
		 ORDER BY l.id ASC
		 LIMIT ?`,
		afterID, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// RewriteCounters only lands while the row still holds the values the
// snapshot read, so increments that commit in between are never overwritten.
func (r *repo) RewriteCounters(ctx context.Context, db *gorm.DB, s domain.CounterSnapshot, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE affiliate_links
		 SET click_count = ?, conversions = ?, revenue = ?, commission = ?, updated_at = ?
		 WHERE id = ?
		   AND click_count = ? AND conversions = ?
		   AND ABS(revenue - ?) < ? AND ABS(commission - ?) < ?`,
		s.ClickCount, s.Conversions, s.Revenue, s.Commission, at,
		s.LinkID,
		s.StoredClickCount, s.StoredConversions,
		s.StoredRevenue, domain.MoneyTolerance, s.StoredCommission, domain.MoneyTolerance,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) expectOne(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
