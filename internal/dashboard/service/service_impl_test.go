package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	linkrepository "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/repository"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatetest"
	clickrepository "github.com/smallbiznis/kolaffiliate/internal/click/repository"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
	"github.com/smallbiznis/kolaffiliate/internal/dashboard/repository"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	kolrepository "github.com/smallbiznis/kolaffiliate/internal/kol/repository"
	kolservice "github.com/smallbiznis/kolaffiliate/internal/kol/service"
	ledgerrepository "github.com/smallbiznis/kolaffiliate/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/kolaffiliate/internal/ledger/service"
	productrepository "github.com/smallbiznis/kolaffiliate/internal/product/repository"
	productservice "github.com/smallbiznis/kolaffiliate/internal/product/service"
	tierrepository "github.com/smallbiznis/kolaffiliate/internal/tier/repository"
	tierservice "github.com/smallbiznis/kolaffiliate/internal/tier/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var dashNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newDashboard(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := affiliatetest.OpenDB(t)
	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	fc := clock.NewFakeClock(dashNow)
	log := zap.NewNop()

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Repo:     ledgerrepository.Provide(),
		LinkRepo: linkrepository.Provide(),
	})
	tierSvc := tierservice.New(tierservice.Params{
		DB:      db,
		Log:     log,
		Clock:   fc,
		Repo:    tierrepository.Provide(),
		KolRepo: kolrepository.Provide(),
		Ledger:  ledger,
	})
	svc := New(Params{
		DB:        db,
		Log:       log,
		Clock:     fc,
		Repo:      repository.Provide(),
		ClickRepo: clickrepository.Provide(),
		KolSvc:    kolservice.New(kolservice.Params{DB: db, Log: log, Repo: kolrepository.Provide()}),
		TierSvc:   tierSvc,
		Products:  productservice.New(productservice.Params{DB: db, Log: log, Repo: productrepository.Provide()}),
	})

	seed := affiliatetest.NewSeeder(db)
	seed.Product(t, 100, "Serum", 100)
	seed.Product(t, 200, "Toner", 250)
	seed.Kol(t, affiliatetest.KolFixture{ID: 7, Tier: "standard", RatePercent: 5})
	seed.Kol(t, affiliatetest.KolFixture{ID: 8, Status: "pending"})

	seed.Link(t, affiliatetest.LinkFixture{ID: 1, KolID: 7, ProductID: 100, ShortCode: "abcd1234", CreatedAt: dashNow.Add(-48 * time.Hour)})
	seed.Link(t, affiliatetest.LinkFixture{ID: 2, KolID: 7, ProductID: 200, ShortCode: "old00001", CreatedAt: dashNow.Add(-40 * 24 * time.Hour)})
	require.NoError(t, db.Exec(`UPDATE affiliate_links SET click_count = 4, conversions = 1, revenue = 200, commission = 10 WHERE id = 1`).Error)
	require.NoError(t, db.Exec(`UPDATE affiliate_links SET click_count = 10, conversions = 2, revenue = 500, commission = 25 WHERE id = 2`).Error)

	seed.Click(t, affiliatetest.ClickFixture{ID: 1, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC), Converted: true})
	seed.Click(t, affiliatetest.ClickFixture{ID: 2, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 3, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 4, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)})

	seed.Order(t, affiliatetest.OrderFixture{ID: 10, KolID: 7, OrderID: "A", ProductID: 100, LinkID: 1, UnitPrice: 200, Revenue: 200, RatePercent: 5, Commission: 10, CreatedAt: dashNow.Add(-24 * time.Hour)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 11, KolID: 7, OrderID: "B", ProductID: 100, LinkID: 1, UnitPrice: 12000, Revenue: 12000, RatePercent: 5, Commission: 600, Status: "completed", CreatedAt: dashNow.Add(-72 * time.Hour)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 12, KolID: 7, OrderID: "C", ProductID: 100, LinkID: 1, UnitPrice: 100, Revenue: 100, RatePercent: 5, Commission: 5, Status: "cancelled", CreatedAt: dashNow.Add(-24 * time.Hour)})
	require.NoError(t, db.Exec(`UPDATE affiliate_orders SET confirmed_at = ? WHERE id = 11`, dashNow.Add(-48*time.Hour)).Error)
	return svc, db
}

func TestDashboardAggregatesDefaultPeriod(t *testing.T) {
	svc, _ := newDashboard(t)

	dash, err := svc.Get(context.Background(), domain.Request{KolID: 7})
	require.NoError(t, err)

	assert.Equal(t, domain.Overview{
		TotalLinks:            1,
		TotalClicks:           4,
		TotalConversions:      1,
		TotalRevenue:          200,
		TotalCommission:       10,
		TotalCommissionEarned: 600,
		ConversionRate:        25,
	}, dash.Overview)

	assert.Equal(t, "standard", dash.TierInfo.CurrentTier)
	assert.InDelta(t, 5, dash.TierInfo.CurrentRate, 0.0001)
	assert.InDelta(t, 12000, dash.TierInfo.TotalSales, 0.0001)
	require.NotNil(t, dash.TierInfo.NextTier)
	assert.Equal(t, "high", *dash.TierInfo.NextTier)
	require.NotNil(t, dash.TierInfo.NextTierThreshold)
	assert.InDelta(t, 100000, *dash.TierInfo.NextTierThreshold, 0.0001)
	assert.InDelta(t, 88000, dash.TierInfo.SalesUntilNextTier, 0.0001)

	assert.Equal(t, domain.Commissions{
		Pending:   domain.CommissionBucket{Count: 1, Amount: 10},
		Completed: domain.CommissionBucket{Count: 1, Amount: 600},
		Cancelled: domain.CommissionBucket{Count: 1, Amount: 5},
	}, dash.Commissions)

	require.Len(t, dash.TopPerformingLinks, 1)
	top := dash.TopPerformingLinks[0]
	assert.Equal(t, "1", top.ID)
	assert.InDelta(t, 25, top.ConversionRate, 0.0001)
	require.NotNil(t, top.Product)
	assert.Equal(t, "Serum", top.Product.Name)

	require.Len(t, dash.RecentActivity, 4)
	assert.Equal(t, "4", dash.RecentActivity[0].ID)
	require.NotNil(t, dash.RecentActivity[0].Product)

	assert.Equal(t, []domain.DailyStat{
		{Date: "2025-03-08", Clicks: 2, Conversions: 1},
		{Date: "2025-03-09", Clicks: 2, Conversions: 0},
	}, dash.DailyStats)
	assert.Equal(t, domain.Period30Days, dash.Period.Period)
}

func TestDashboardCustomRange(t *testing.T) {
	svc, _ := newDashboard(t)

	dash, err := svc.Get(context.Background(), domain.Request{KolID: 7, StartDate: "2025-03-09", EndDate: "2025-03-09"})
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodCustom, dash.Period.Period)
	assert.Zero(t, dash.Overview.TotalLinks)
	assert.Empty(t, dash.TopPerformingLinks)
	assert.Equal(t, []domain.DailyStat{{Date: "2025-03-09", Clicks: 2}}, dash.DailyStats)
	assert.Equal(t, domain.CommissionBucket{Count: 1, Amount: 10}, dash.Commissions.Pending)
}

func TestDashboardRejectsInvalidDates(t *testing.T) {
	svc, _ := newDashboard(t)
	_, err := svc.Get(context.Background(), domain.Request{KolID: 7, StartDate: "03/01/2025", EndDate: "2025-03-09"})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}

func TestDashboardRequiresApprovedKol(t *testing.T) {
	svc, _ := newDashboard(t)
	_, err := svc.Get(context.Background(), domain.Request{KolID: 8})
	assert.ErrorIs(t, err, koldomain.ErrNotApprovedKol)
}

func TestDashboardHighTierHasNoNextTier(t *testing.T) {
	svc, db := newDashboard(t)
	require.NoError(t, db.Exec(`UPDATE affiliate_orders SET revenue = 150000 WHERE id = 11`).Error)

	dash, err := svc.Get(context.Background(), domain.Request{KolID: 7})
	require.NoError(t, err)
	assert.Equal(t, "high", dash.TierInfo.CurrentTier)
	assert.Nil(t, dash.TierInfo.NextTier)
	assert.Zero(t, dash.TierInfo.SalesUntilNextTier)
}
