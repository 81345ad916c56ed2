package domain

import (
	"context"
	"errors"

	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
)

type KolID = attributiondomain.ID

// StatsService computes stats on demand. kolID 0 means every KOL.
type StatsService interface {
	Compute(ctx context.Context, kolID int64) (*Stats, error)
}

var (
	ErrHubClosed        = errors.New("realtime_connection_closed")
	ErrInvalidKolID     = errors.New("invalid_kol_id")
	ErrSubscribeDenied  = errors.New("subscription_denied")
	ErrUnknownMessage   = errors.New("unknown_message_type")
	ErrStatsUnavailable = errors.New("stats_unavailable")
)
