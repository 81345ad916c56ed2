package domain

import (
	"context"
	"errors"
)

type Service interface {
	RecordClick(ctx context.Context, shortCode string, meta RequestMeta) (*RecordResult, error)
}

var ErrInvalidLink = errors.New("invalid_or_expired_link")
