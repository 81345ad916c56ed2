package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, click *domain.Click) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO affiliate_clicks (
			id, link_id, kol_id, product_id, ip_address, user_agent, referrer_url,
			geo_location, clicked_at, converted, conversion_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		click.ID,
		click.LinkID,
		click.KolID,
		click.ProductID,
		click.IPAddress,
		click.UserAgent,
		click.ReferrerURL,
		click.GeoLocation,
		click.ClickedAt,
		false,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Click, error) {
	var clicks []domain.Click
	err := db.WithContext(ctx).Raw(
		`SELECT id, link_id, kol_id, product_id, ip_address, user_agent, referrer_url,
		        geo_location, clicked_at, converted, conversion_id
		 FROM affiliate_clicks
		 WHERE id = ?`,
		id,
	).Scan(&clicks).Error
	if err != nil {
		return nil, err
	}
	if len(clicks) == 0 {
		return nil, nil
	}
	return &clicks[0], nil
}

func (r *repo) ConvertLatest(ctx context.Context, db *gorm.DB, m domain.ConvertMatch, conversionID int64) (*int64, error) {
	query := `SELECT id FROM affiliate_clicks
		WHERE link_id = ? AND kol_id = ? AND converted = ?`
	args := []any{m.LinkID, m.KolID, false}
	if m.ProductID != nil {
		query += ` AND product_id = ?`
		args = append(args, *m.ProductID)
	}
	if m.ClickID != nil {
		query += ` AND id = ?`
		args = append(args, *m.ClickID)
	}
	query += ` ORDER BY clicked_at DESC, id DESC LIMIT 1 FOR UPDATE`

	var ids []int64
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	res := db.WithContext(ctx).Exec(
		`UPDATE affiliate_clicks SET converted = ?, conversion_id = ? WHERE id = ? AND converted = ?`,
		true, conversionID, ids[0], false,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	id := ids[0]
	return &id, nil
}

func (r *repo) Window(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (domain.WindowCounts, error) {
	query := `SELECT COUNT(*) AS clicks,
		COALESCE(SUM(CASE WHEN converted THEN 1 ELSE 0 END), 0) AS conversions
		FROM affiliate_clicks
		WHERE clicked_at >= ? AND clicked_at < ?`
	args := []any{from, to}
	if kolID != 0 {
		query += ` AND kol_id = ?`
		args = append(args, kolID)
	}

	var counts domain.WindowCounts
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&counts).Error; err != nil {
		return domain.WindowCounts{}, err
	}
	return counts, nil
}

func (r *repo) Recent(ctx context.Context, db *gorm.DB, kolID int64, limit int) ([]domain.Click, error) {
	var clicks []domain.Click
	err := db.WithContext(ctx).Raw(
		`SELECT id, link_id, kol_id, product_id, ip_address, user_agent, referrer_url,
		        geo_location, clicked_at, converted, conversion_id
		 FROM affiliate_clicks
		 WHERE kol_id = ?
		 ORDER BY clicked_at DESC, id DESC
		 LIMIT ?`,
		kolID, limit,
	).Scan(&clicks).Error
	if err != nil {
		return nil, err
	}
	return clicks, nil
}

func (r *repo) Points(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) ([]domain.Point, error) {
	var points []domain.Point
	err := db.WithContext(ctx).Raw(
		`SELECT clicked_at, converted FROM affiliate_clicks
		 WHERE kol_id = ? AND clicked_at >= ? AND clicked_at < ?
		 ORDER BY clicked_at ASC`,
		kolID, from, to,
	).Scan(&points).Error
	if err != nil {
		return nil, err
	}
	return points, nil
}
