package service

import (
	"context"
	"time"

	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"github.com/smallbiznis/kolaffiliate/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const realtimeWindow = time.Hour

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	ClickRepo clickdomain.Repository
	LinkRepo  linkdomain.Repository
	Ledger    ledgerdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	clickRepo clickdomain.Repository
	linkRepo  linkdomain.Repository
	ledger    ledgerdomain.Service
}

func New(p Params) domain.StatsService {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("realtime.stats"),
		clock:     p.Clock,
		clickRepo: p.ClickRepo,
		linkRepo:  p.LinkRepo,
		ledger:    p.Ledger,
	}
}

// Compute builds the last-hour, today (UTC), pending and overview figures.
func (s *Service) Compute(ctx context.Context, kolID int64) (*domain.Stats, error) {
	if kolID < 0 {
		return nil, domain.ErrInvalidKolID
	}
	now := s.clock.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	recent, err := s.window(ctx, kolID, now.Add(-realtimeWindow), now)
	if err != nil {
		return nil, err
	}
	today, err := s.window(ctx, kolID, midnight, now)
	if err != nil {
		return nil, err
	}

	totals, err := s.ledger.TotalsByStatus(ctx, kolID)
	if err != nil {
		return nil, err
	}
	pending := totals[ledgerdomain.StatusPending]

	active, err := s.linkRepo.CountActive(ctx, s.db, kolID, now)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		Realtime: recent,
		Today:    today,
		Pending: domain.Pending{
			CommissionCount:  pending.Count,
			CommissionAmount: money.Round2(pending.Amount),
		},
		Overview:  domain.Overview{ActiveLinks: active},
		Timestamp: now,
	}, nil
}

// window includes events stamped exactly at to.
func (s *Service) window(ctx context.Context, kolID int64, from, to time.Time) (domain.Window, error) {
	end := to.Add(time.Microsecond)
	counts, err := s.clickRepo.Window(ctx, s.db, kolID, from, end)
	if err != nil {
		return domain.Window{}, err
	}
	totals, err := s.ledger.Window(ctx, kolID, from, end)
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{
		Clicks:           counts.Clicks,
		Conversions:      counts.Conversions,
		ConversionRate:   money.Percent(float64(counts.Conversions), float64(counts.Clicks)),
		Revenue:          money.Round2(totals.Revenue),
		CommissionCount:  totals.CommissionCount,
		CommissionAmount: money.Round2(totals.CommissionAmount),
	}, nil
}
