package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"github.com/smallbiznis/kolaffiliate/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultBatchSize        = 25
	defaultBatchConcurrency = 5
	defaultEligibleLimit    = 100
)

type Params struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Clock            clock.Clock
	Repo             domain.Repository
	KolRepo          koldomain.Repository
	Ledger           ledgerdomain.Service
	Commission       *config.CommissionConfigHolder `optional:"true"`
	Notifier         realtimedomain.Notifier        `optional:"true"`
	ObsMetrics       *obsmetrics.Metrics            `optional:"true"`
	SchedulerMetrics *obsmetrics.SchedulerMetrics   `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	repo         domain.Repository
	kolRepo      koldomain.Repository
	ledger       ledgerdomain.Service
	commission   *config.CommissionConfigHolder
	notifier     realtimedomain.Notifier
	obsMetrics   *obsmetrics.Metrics
	schedMetrics *obsmetrics.SchedulerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("tier.service"),
		clock:        p.Clock,
		repo:         p.Repo,
		kolRepo:      p.KolRepo,
		ledger:       p.Ledger,
		commission:   p.Commission,
		notifier:     p.Notifier,
		obsMetrics:   p.ObsMetrics,
		schedMetrics: p.SchedulerMetrics,
	}
}

func (s *Service) Table() domain.Table {
	if s.commission == nil {
		return domain.DefaultTable()
	}
	return domain.TableFromConfig(s.commission.Get())
}

func (s *Service) ComputeTotalSales(ctx context.Context, kolID int64) (float64, error) {
	if kolID <= 0 {
		return 0, domain.ErrInvalidKolID
	}
	total, err := s.ledger.CompletedRevenue(ctx, kolID)
	if err != nil {
		return 0, err
	}
	return money.Round2(total), nil
}

// RecalculateKol recomputes total sales from completed ledger rows and
// rewrites the stored tier only when the bracket or rate moved.
func (s *Service) RecalculateKol(ctx context.Context, kolID int64) (*domain.TierChange, error) {
	if kolID <= 0 {
		return nil, domain.ErrInvalidKolID
	}
	k, err := s.kolRepo.FindByID(ctx, s.db, kolID)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, koldomain.ErrNotFound
	}
	if !k.IsKol {
		return nil, domain.ErrNotKol
	}

	total, err := s.ComputeTotalSales(ctx, kolID)
	if err != nil {
		return nil, err
	}
	target := s.Table().RateFor(total)

	change := &domain.TierChange{
		KolID:       kolID,
		OldTier:     k.KolTier,
		NewTier:     target.Label,
		OldRate:     k.KolCommissionRate,
		NewRate:     target.RatePercent,
		TotalSales:  total,
		TierChanged: k.KolTier != target.Label,
		RateChanged: k.KolCommissionRate != target.RatePercent,
	}

	switch {
	case change.Changed():
		if err := s.kolRepo.UpdateTier(ctx, s.db, koldomain.TierUpdate{
			KolID:       kolID,
			Tier:        target.Label,
			RatePercent: target.RatePercent,
			TotalSales:  total,
			UpdatedAt:   s.clock.Now(),
		}); err != nil {
			return nil, err
		}
	case k.TotalSales != total:
		if err := s.kolRepo.UpdateTotalSales(ctx, s.db, kolID, total); err != nil {
			return nil, err
		}
	}

	if change.TierChanged {
		s.log.Info("kol tier changed",
			zap.Int64("kol_id", kolID),
			zap.String("from", change.OldTier),
			zap.String("to", change.NewTier),
			zap.Float64("total_sales", total),
		)
		s.obsMetrics.RecordTierChange(ctx, change.OldTier, change.NewTier)
		s.schedMetrics.IncTierChange(change.OldTier, change.NewTier)
		if s.notifier != nil {
			s.notifier.NotifyKol(kolID, realtimedomain.EventTierChange)
		}
	}
	return change, nil
}

// RecalculateAll pages through approved KOLs. A failing KOL is recorded and
// the pass continues.
func (s *Service) RecalculateAll(ctx context.Context, opts domain.BatchOptions) (*domain.BatchResult, error) {
	if opts.Size <= 0 {
		opts.Size = defaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultBatchConcurrency
	}

	result := &domain.BatchResult{}
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ids, err := s.kolRepo.ListApprovedIDs(ctx, s.db, afterID, opts.Size)
		if err != nil {
			return result, err
		}
		if len(ids) == 0 {
			break
		}
		if err := s.recalculateBatch(ctx, ids, opts.Concurrency, result); err != nil {
			return result, err
		}
		afterID = ids[len(ids)-1]
		if len(ids) < opts.Size {
			break
		}
		if err := sleepContext(ctx, opts.Delay); err != nil {
			return result, err
		}
	}

	s.log.Info("tier recalculation finished",
		zap.Int("processed", result.Processed),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) EligibleForUpgrade(ctx context.Context, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = defaultEligibleLimit
	}
	table := s.Table()
	rows, err := s.repo.Candidates(ctx, s.db, table, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(rows))
	for _, c := range rows {
		target := table.RateFor(c.CompletedSales)
		if target.RatePercent <= c.CurrentRate {
			continue
		}
		c.NewTier = target.Label
		c.NewRate = target.RatePercent
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) RecalculateEligible(ctx context.Context, limit int) (*domain.BatchResult, error) {
	candidates, err := s.EligibleForUpgrade(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.KolID)
	}
	result := &domain.BatchResult{}
	if err := s.recalculateBatch(ctx, ids, defaultBatchConcurrency, result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) Statistics(ctx context.Context) ([]domain.Statistic, error) {
	stats, err := s.repo.Statistics(ctx, s.db)
	if err != nil {
		return nil, err
	}
	table := s.Table()
	for i := range stats {
		if t, ok := table.Lookup(stats[i].Tier); ok {
			stats[i].RatePercent = t.RatePercent
		}
		stats[i].AvgSales = money.Round2(stats[i].AvgSales)
	}
	return stats, nil
}

func (s *Service) recalculateBatch(ctx context.Context, ids []int64, concurrency int, result *domain.BatchResult) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, id := range ids {
		g.Go(func() error {
			change, err := s.RecalculateKol(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				result.Failed++
				result.Errors = append(result.Errors, domain.KolError{KolID: id, Error: err.Error()})
				s.log.Warn("tier recalculation failed", zap.Int64("kol_id", id), zap.Error(err))
				return nil
			}
			if change.Changed() {
				result.Updated++
				result.Changes = append(result.Changes, *change)
			}
			return nil
		})
	}
	return g.Wait()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
