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
	ledgerrepository "github.com/smallbiznis/kolaffiliate/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/kolaffiliate/internal/ledger/service"
	"github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStats(t *testing.T) (domain.StatsService, *affiliatetest.Seeder, time.Time) {
	t.Helper()
	db := affiliatetest.OpenDB(t)
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fc := clock.NewFakeClock(now)
	log := zap.NewNop()

	ledger := ledgerservice.NewService(ledgerservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Repo:     ledgerrepository.Provide(),
		LinkRepo: linkrepository.Provide(),
	})
	svc := New(Params{
		DB:        db,
		Log:       log,
		Clock:     fc,
		ClickRepo: clickrepository.Provide(),
		LinkRepo:  linkrepository.Provide(),
		Ledger:    ledger,
	})

	seed := affiliatetest.NewSeeder(db)
	seed.Product(t, 100, "Serum", 100)
	seed.Kol(t, affiliatetest.KolFixture{ID: 7, Tier: "standard", RatePercent: 5})
	seed.Kol(t, affiliatetest.KolFixture{ID: 8, Tier: "bronze", RatePercent: 3})
	seed.Link(t, affiliatetest.LinkFixture{ID: 1, KolID: 7, ProductID: 100, ShortCode: "abcd1234"})
	seed.Link(t, affiliatetest.LinkFixture{ID: 2, KolID: 8, ProductID: 100, ShortCode: "efgh5678"})
	expired := now.Add(-time.Hour)
	seed.Link(t, affiliatetest.LinkFixture{ID: 3, KolID: 7, ProductID: 100, ShortCode: "gone0001", ExpiresAt: &expired})
	return svc, seed, now
}

func TestComputeSplitsRealtimeAndToday(t *testing.T) {
	svc, seed, now := newStats(t)

	seed.Click(t, affiliatetest.ClickFixture{ID: 1, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: now.Add(-10 * time.Minute), Converted: true})
	seed.Click(t, affiliatetest.ClickFixture{ID: 2, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: now.Add(-20 * time.Minute)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 3, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: now.Add(-3 * time.Hour)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 4, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: now.Add(-13 * time.Hour)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 5, LinkID: 2, KolID: 8, ProductID: 100, ClickedAt: now.Add(-5 * time.Minute)})

	seed.Order(t, affiliatetest.OrderFixture{ID: 10, KolID: 7, OrderID: "A", ProductID: 100, LinkID: 1, UnitPrice: 200, Revenue: 200, RatePercent: 5, Commission: 10, CreatedAt: now.Add(-5 * time.Minute)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 11, KolID: 7, OrderID: "B", ProductID: 100, LinkID: 1, UnitPrice: 100, Revenue: 100, RatePercent: 5, Commission: 5, Status: "completed", CreatedAt: now.Add(-2 * time.Hour)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 12, KolID: 7, OrderID: "C", ProductID: 100, LinkID: 1, UnitPrice: 50, Revenue: 50, RatePercent: 5, Commission: 2.5, Status: "cancelled", CreatedAt: now.Add(-time.Minute)})

	stats, err := svc.Compute(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, domain.Window{
		Clicks:           2,
		Conversions:      1,
		ConversionRate:   50,
		Revenue:          200,
		CommissionCount:  1,
		CommissionAmount: 10,
	}, stats.Realtime)
	assert.Equal(t, int64(3), stats.Today.Clicks)
	assert.InDelta(t, 33.33, stats.Today.ConversionRate, 0.001)
	assert.InDelta(t, 300, stats.Today.Revenue, 0.001)
	assert.Equal(t, int64(2), stats.Today.CommissionCount)
	assert.Equal(t, domain.Pending{CommissionCount: 1, CommissionAmount: 10}, stats.Pending)
	assert.Equal(t, int64(1), stats.Overview.ActiveLinks)
	assert.True(t, stats.Timestamp.Equal(now))
}

func TestComputeGlobalSpansEveryKol(t *testing.T) {
	svc, seed, now := newStats(t)
	seed.Click(t, affiliatetest.ClickFixture{ID: 1, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: now.Add(-10 * time.Minute)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 2, LinkID: 2, KolID: 8, ProductID: 100, ClickedAt: now.Add(-5 * time.Minute)})

	stats, err := svc.Compute(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Realtime.Clicks)
	assert.Equal(t, int64(2), stats.Overview.ActiveLinks)
	assert.Zero(t, stats.Realtime.ConversionRate)
}

func TestComputeRejectsNegativeKol(t *testing.T) {
	svc, _, _ := newStats(t)
	_, err := svc.Compute(context.Background(), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidKolID)
}
