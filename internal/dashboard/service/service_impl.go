package service

import (
	"context"
	"strconv"

	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"github.com/smallbiznis/kolaffiliate/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	ClickRepo clickdomain.Repository
	KolSvc    koldomain.Service
	TierSvc   tierdomain.Service
	Products  productdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      domain.Repository
	clickRepo clickdomain.Repository
	kolSvc    koldomain.Service
	tierSvc   tierdomain.Service
	products  productdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("dashboard.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		clickRepo: p.ClickRepo,
		kolSvc:    p.KolSvc,
		tierSvc:   p.TierSvc,
		products:  p.Products,
	}
}

func (s *Service) Get(ctx context.Context, req domain.Request) (*domain.Dashboard, error) {
	kol, err := s.kolSvc.RequireApproved(ctx, req.KolID)
	if err != nil {
		return nil, err
	}
	rng, err := domain.ResolveRange(s.clock.Now(), req.StartDate, req.EndDate, req.Period)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.LinkTotals(ctx, s.db, kol.ID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	earned, err := s.repo.EarnedCommission(ctx, s.db, kol.ID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.repo.CommissionsByStatus(ctx, s.db, kol.ID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}
	tierInfo, err := s.tierInfo(ctx, kol.ID)
	if err != nil {
		return nil, err
	}
	topLinks, err := s.repo.TopLinks(ctx, s.db, kol.ID, rng.From, rng.To, domain.TopLinksLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.clickRepo.Recent(ctx, s.db, kol.ID, domain.RecentActivityLimit)
	if err != nil {
		return nil, err
	}
	points, err := s.clickRepo.Points(ctx, s.db, kol.ID, rng.From, rng.To)
	if err != nil {
		return nil, err
	}

	productIDs := make([]int64, 0, len(topLinks)+len(recent))
	for _, l := range topLinks {
		productIDs = append(productIDs, l.ProductID)
	}
	for _, c := range recent {
		productIDs = append(productIDs, c.ProductID)
	}
	summaries, err := s.products.Summaries(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	out := &domain.Dashboard{
		Overview: domain.Overview{
			TotalLinks:            totals.TotalLinks,
			TotalClicks:           totals.TotalClicks,
			TotalConversions:      totals.TotalConversions,
			TotalRevenue:          money.Round2(totals.TotalRevenue),
			TotalCommission:       money.Round2(totals.TotalCommission),
			TotalCommissionEarned: money.Round2(earned),
			ConversionRate:        money.Percent(float64(totals.TotalConversions), float64(totals.TotalClicks)),
		},
		TierInfo:           *tierInfo,
		Commissions:        commissionBreakdown(breakdown),
		TopPerformingLinks: make([]domain.TopLink, 0, len(topLinks)),
		RecentActivity:     make([]domain.Activity, 0, len(recent)),
		DailyStats:         dailyStats(points),
		Period: domain.Period{
			StartDate: rng.From,
			EndDate:   rng.To,
			Period:    rng.Period,
		},
	}
	for _, l := range topLinks {
		out.TopPerformingLinks = append(out.TopPerformingLinks, domain.TopLink{
			ID:             strconv.FormatInt(l.ID, 10),
			ShortURL:       l.ShortURL,
			Clicks:         l.ClickCount,
			Conversions:    l.Conversions,
			Revenue:        money.Round2(l.Revenue),
			Commission:     money.Round2(l.Commission),
			ConversionRate: money.Percent(float64(l.Conversions), float64(l.ClickCount)),
			CreatedAt:      l.CreatedAt,
			Product:        lookup(summaries, l.ProductID),
		})
	}
	for _, c := range recent {
		out.RecentActivity = append(out.RecentActivity, domain.Activity{
			ID:          strconv.FormatInt(c.ID, 10),
			ClickedAt:   c.ClickedAt,
			Converted:   c.Converted,
			IPAddress:   c.IPAddress,
			ReferrerURL: c.ReferrerURL,
			Product:     lookup(summaries, c.ProductID),
		})
	}
	return out, nil
}

// tierInfo derives tier and rate from completed sales through the tier
// table, the same path the scheduler writes.
func (s *Service) tierInfo(ctx context.Context, kolID int64) (*domain.TierInfo, error) {
	totalSales, err := s.tierSvc.ComputeTotalSales(ctx, kolID)
	if err != nil {
		return nil, err
	}
	table := s.tierSvc.Table()
	current := table.RateFor(totalSales)
	info := &domain.TierInfo{
		CurrentTier: current.Label,
		CurrentRate: current.RatePercent,
		TotalSales:  money.Round2(totalSales),
	}
	if next, remaining, ok := table.Next(totalSales); ok {
		label := next.Label
		threshold := next.MinSales
		info.NextTier = &label
		info.NextTierThreshold = &threshold
		info.SalesUntilNextTier = money.Round2(remaining)
	}
	return info, nil
}

func commissionBreakdown(rows []ledgerdomain.StatusTotal) domain.Commissions {
	var out domain.Commissions
	for _, row := range rows {
		bucket := domain.CommissionBucket{Count: row.Count, Amount: money.Round2(row.Amount)}
		switch row.Status {
		case ledgerdomain.StatusPending:
			out.Pending = bucket
		case ledgerdomain.StatusCompleted:
			out.Completed = bucket
		case ledgerdomain.StatusCancelled:
			out.Cancelled = bucket
		}
	}
	return out
}

// dailyStats buckets points by UTC day. Points arrive in time order.
func dailyStats(points []clickdomain.Point) []domain.DailyStat {
	out := make([]domain.DailyStat, 0)
	for _, p := range points {
		day := p.ClickedAt.UTC().Format("2006-01-02")
		if len(out) == 0 || out[len(out)-1].Date != day {
			out = append(out, domain.DailyStat{Date: day})
		}
		last := &out[len(out)-1]
		last.Clicks++
		if p.Converted {
			last.Conversions++
		}
	}
	return out
}

func lookup(summaries map[int64]productdomain.Summary, id int64) *productdomain.Summary {
	summary, ok := summaries[id]
	if !ok {
		return nil
	}
	return &summary
}
