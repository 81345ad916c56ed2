package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// Candidates returns approved KOLs whose completed sales reach a bracket
	// paying more than their stored rate.
	Candidates(ctx context.Context, db *gorm.DB, table Table, limit int) ([]Candidate, error)
	Statistics(ctx context.Context, db *gorm.DB) ([]Statistic, error)
}
