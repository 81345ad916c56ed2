package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Table is the tier table currently in force.
	Table() Table
	ComputeTotalSales(ctx context.Context, kolID int64) (float64, error)
	RecalculateKol(ctx context.Context, kolID int64) (*TierChange, error)
	RecalculateAll(ctx context.Context, opts BatchOptions) (*BatchResult, error)
	EligibleForUpgrade(ctx context.Context, limit int) ([]Candidate, error)
	RecalculateEligible(ctx context.Context, limit int) (*BatchResult, error)
	Statistics(ctx context.Context) ([]Statistic, error)
}

var (
	ErrInvalidKolID = errors.New("invalid_kol_id")
	ErrNotKol       = errors.New("user_is_not_kol")
)
