package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, link *Link) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Link, error)
	FindByShortCode(ctx context.Context, db *gorm.DB, shortCode string) (*Link, error)
	// ListByKol returns up to limit links newest first, strictly after the
	// (createdAt, id) cursor when one is given.
	ListByKol(ctx context.Context, db *gorm.DB, kolID int64, after *ListCursor, limit int) ([]Link, error)
	CountActive(ctx context.Context, db *gorm.DB, kolID int64, now time.Time) (int64, error)

	IncrementClicks(ctx context.Context, db *gorm.DB, linkID int64, at time.Time) error
	AddConversion(ctx context.Context, db *gorm.DB, linkID int64, revenue, commission float64, at time.Time) error
	RemoveConversion(ctx context.Context, db *gorm.DB, linkID int64, revenue, commission float64, at time.Time) error

	// LedgerCounters recomputes counters from click rows and non-cancelled
	// ledger rows for links with id greater than afterID.
	LedgerCounters(ctx context.Context, db *gorm.DB, afterID int64, limit int) ([]CounterSnapshot, error)
	// RewriteCounters reports false when the row moved since the snapshot
	// and was left alone.
	RewriteCounters(ctx context.Context, db *gorm.DB, snapshot CounterSnapshot, at time.Time) (bool, error)
}

type ListCursor struct {
	ID        int64
	CreatedAt time.Time
}
