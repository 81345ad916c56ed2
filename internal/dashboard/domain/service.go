package domain

import (
	"context"
	"errors"
)

type Service interface {
	Get(ctx context.Context, req Request) (*Dashboard, error)
}

var (
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrInvalidPeriod    = errors.New("invalid_period")
)
