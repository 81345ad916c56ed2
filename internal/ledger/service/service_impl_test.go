package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	linkrepository "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/repository"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatetest"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"github.com/smallbiznis/kolaffiliate/internal/ledger/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := affiliatetest.OpenDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Repo:     repository.Provide(),
		LinkRepo: linkrepository.Provide(),
	}).(*Service)

	seed := affiliatetest.NewSeeder(db)
	seed.Kol(t, affiliatetest.KolFixture{ID: 7})
	seed.Product(t, 100, "Serum", 100)
	seed.Link(t, affiliatetest.LinkFixture{ID: 1, KolID: 7, ProductID: 100, ShortCode: "abcd1234"})
	return svc, db, fc
}

func entry(orderID string) ledgerdomain.NewEntry {
	return ledgerdomain.NewEntry{
		KolID:           7,
		OrderID:         orderID,
		ProductID:       100,
		LinkID:          1,
		Quantity:        2,
		UnitPrice:       100,
		Revenue:         200,
		CommissionRate:  5,
		Commission:      10,
		AttributionType: ledgerdomain.AttributionSpecific,
		Reason:          "product_match",
		Metadata:        map[string]any{"short_code": "abcd1234"},
	}
}

func TestAppendRejectsDuplicateLine(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	row, err := svc.Append(ctx, db, entry("ORD-1"))
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusPending, row.Status)

	_, err = svc.Append(ctx, db, entry("ORD-1"))
	assert.ErrorIs(t, err, ledgerdomain.ErrDuplicateEntry)

	rows, err := svc.ListByOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "abcd1234", rows[0].Metadata["short_code"])
}

func TestAppendValidates(t *testing.T) {
	svc, db, _ := newTestService(t)
	e := entry(" ")
	_, err := svc.Append(context.Background(), db, e)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidOrderID)

	e = entry("ORD-2")
	e.Quantity = 0
	_, err = svc.Append(context.Background(), db, e)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidEntry)
}

func TestTransitionComplete(t *testing.T) {
	svc, db, fc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Append(ctx, db, entry("ORD-1"))
	require.NoError(t, err)

	res, err := svc.Transition(ctx, "ORD-1", ledgerdomain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows)
	assert.Equal(t, []int64{7}, res.KolIDs)

	rows, err := svc.ListByOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.NotNil(t, rows[0].ConfirmedAt)
	assert.True(t, rows[0].ConfirmedAt.Equal(fc.Now()))

	revenue, err := svc.CompletedRevenue(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 200.0, revenue)

	_, err = svc.Transition(ctx, "ORD-1", ledgerdomain.StatusCancelled)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTransition)
}

func TestTransitionCancelReversesLinkCounters(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Append(ctx, db, entry("ORD-1"))
	require.NoError(t, err)
	require.NoError(t, db.Exec(`UPDATE affiliate_links SET conversions = 1, revenue = 200, commission = 10 WHERE id = 1`).Error)

	_, err = svc.Transition(ctx, "ORD-1", ledgerdomain.StatusCancelled)
	require.NoError(t, err)

	var link struct {
		Conversions int64
		Revenue     float64
		Commission  float64
	}
	require.NoError(t, db.Raw(`SELECT conversions, revenue, commission FROM affiliate_links WHERE id = 1`).Scan(&link).Error)
	assert.Equal(t, int64(0), link.Conversions)
	assert.Equal(t, 0.0, link.Revenue)
	assert.Equal(t, 0.0, link.Commission)

	totals, err := svc.TotalsByStatus(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals[ledgerdomain.StatusCancelled].Count)
	assert.Equal(t, int64(0), totals[ledgerdomain.StatusPending].Count)
}

func TestTransitionRejectsUnknownOrderAndTarget(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Transition(context.Background(), "missing", ledgerdomain.StatusCompleted)
	assert.ErrorIs(t, err, ledgerdomain.ErrNotFound)

	_, err = svc.Transition(context.Background(), "missing", ledgerdomain.StatusPending)
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTransition)
}

func TestWindowExcludesCancelledAndOutOfRange(t *testing.T) {
	svc, db, fc := newTestService(t)
	seed := affiliatetest.NewSeeder(db)
	now := fc.Now()
	seed.Order(t, affiliatetest.OrderFixture{ID: 1, KolID: 7, OrderID: "A", ProductID: 100, LinkID: 1, Revenue: 100, Commission: 5, CreatedAt: now.Add(-10 * time.Minute)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 2, KolID: 7, OrderID: "B", ProductID: 100, LinkID: 1, Revenue: 50, Commission: 2.5, Status: "cancelled", CreatedAt: now.Add(-5 * time.Minute)})
	seed.Order(t, affiliatetest.OrderFixture{ID: 3, KolID: 7, OrderID: "C", ProductID: 100, LinkID: 1, Revenue: 80, Commission: 4, CreatedAt: now.Add(-2 * time.Hour)})

	totals, err := svc.Window(context.Background(), 7, now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, 100.0, totals.Revenue)
	assert.Equal(t, int64(1), totals.CommissionCount)
	assert.Equal(t, 5.0, totals.CommissionAmount)
}
