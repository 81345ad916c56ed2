package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, click *Click) error
	// FindByID returns nil when the click does not exist.
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Click, error)
	// ConvertLatest flags the most recent unconverted click matching m and
	// returns its id, or nil when there is none.
	ConvertLatest(ctx context.Context, db *gorm.DB, m ConvertMatch, conversionID int64) (*int64, error)

	// Window counts clicks and converted clicks in [from, to); kolID 0 spans
	// all KOLs.
	Window(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) (WindowCounts, error)
	Recent(ctx context.Context, db *gorm.DB, kolID int64, limit int) ([]Click, error)
	Points(ctx context.Context, db *gorm.DB, kolID int64, from, to time.Time) ([]Point, error)
}
