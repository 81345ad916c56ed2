package domain

import (
	"context"
	"errors"
)

type Service interface {
	Get(ctx context.Context, id int64) (*Kol, error)
	// RequireApproved resolves the caller and fails unless they are an approved KOL.
	RequireApproved(ctx context.Context, id int64) (*Kol, error)
}

var (
	ErrNotFound       = errors.New("kol_not_found")
	ErrNotApprovedKol = errors.New("not_approved_kol")
	ErrInvalidID      = errors.New("invalid_kol_id")
)
