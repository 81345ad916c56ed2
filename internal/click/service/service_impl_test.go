package service

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	linkrepository "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/repository"
	linkservice "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/service"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatetest"
	"github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/click/repository"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	kolrepository "github.com/smallbiznis/kolaffiliate/internal/kol/repository"
	kolservice "github.com/smallbiznis/kolaffiliate/internal/kol/service"
	productrepository "github.com/smallbiznis/kolaffiliate/internal/product/repository"
	productservice "github.com/smallbiznis/kolaffiliate/internal/product/service"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyKol(kolID int64, event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func newClickService(t *testing.T, notifier realtimedomain.Notifier) (*Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := affiliatetest.OpenDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	log := zap.NewNop()
	fc := clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{Affiliate: config.AffiliateConfig{BaseURL: "https://shop.test/", ShortCodeLength: 8}}

	linkRepo := linkrepository.Provide()
	linkSvc := linkservice.New(linkservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fc,
		Config:     cfg,
		Repo:       linkRepo,
		KolSvc:     kolservice.New(kolservice.Params{DB: db, Log: log, Repo: kolrepository.Provide()}),
		ProductSvc: productservice.New(productservice.Params{DB: db, Log: log, Repo: productrepository.Provide()}),
	})

	p := Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Config:   cfg,
		Repo:     repository.Provide(),
		LinkSvc:  linkSvc,
		LinkRepo: linkRepo,
		Notifier: notifier,
	}
	svc := New(p).(*Service)

	seed := affiliatetest.NewSeeder(db)
	seed.Kol(t, affiliatetest.KolFixture{ID: 7})
	seed.Product(t, 100, "Serum", 100)
	seed.Link(t, affiliatetest.LinkFixture{ID: 1, KolID: 7, ProductID: 100, ShortCode: "abcd1234"})
	return svc, db, fc
}

func TestConvertLatestPinnedToClick(t *testing.T) {
	_, db, fc := newClickService(t, nil)
	seed := affiliatetest.NewSeeder(db)
	seed.Click(t, affiliatetest.ClickFixture{ID: 10, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: fc.Now().Add(-time.Hour)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 11, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: fc.Now().Add(-time.Minute)})

	repo := repository.Provide()
	ctx := context.Background()
	older := int64(10)

	id, err := repo.ConvertLatest(ctx, db, domain.ConvertMatch{LinkID: 1, KolID: 7, ClickID: &older}, 99)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(10), *id)

	// an already converted click is never handed to another conversion
	id, err = repo.ConvertLatest(ctx, db, domain.ConvertMatch{LinkID: 1, KolID: 7, ClickID: &older}, 100)
	require.NoError(t, err)
	assert.Nil(t, id)

	other := int64(11)
	id, err = repo.ConvertLatest(ctx, db, domain.ConvertMatch{LinkID: 2, KolID: 7, ClickID: &other}, 101)
	require.NoError(t, err)
	assert.Nil(t, id)

	click, err := repo.FindByID(ctx, db, 11)
	require.NoError(t, err)
	require.NotNil(t, click)
	assert.False(t, click.Converted)
	assert.Equal(t, int64(1), click.LinkID)

	missing, err := repo.FindByID(ctx, db, 404)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordClick(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, db, _ := newClickService(t, notifier)

	res, err := svc.RecordClick(context.Background(), "abcd1234", domain.RequestMeta{
		IP:          "203.0.113.77",
		UserAgent:   "Mozilla/5.0",
		Referrer:    "https://tiktok.com/@kol",
		GeoLocation: map[string]any{"country": "ID"},
	})
	require.NoError(t, err)

	u, err := url.Parse(res.DestinationURL)
	require.NoError(t, err)
	assert.Equal(t, "/detail-product/100", u.Path)
	q := u.Query()
	assert.Equal(t, "1", q.Get("aff"))
	assert.Equal(t, "7", q.Get("kol"))
	assert.Equal(t, "7", q.Get("ref"))
	assert.Equal(t, "100", q.Get("product"))
	assert.Equal(t, strconv.FormatInt(res.ClickID, 10), q.Get("click"))
	assert.Equal(t, "abcd1234", q.Get("utm_campaign"))

	var stored domain.Click
	require.NoError(t, db.Raw(`SELECT * FROM affiliate_clicks WHERE id = ?`, res.ClickID).Scan(&stored).Error)
	assert.Equal(t, "203.0.113.0", stored.IPAddress)
	assert.False(t, stored.Converted)
	assert.Nil(t, stored.ConversionID)
	assert.Equal(t, "ID", stored.GeoLocation["country"])

	var count int64
	require.NoError(t, db.Raw(`SELECT click_count FROM affiliate_links WHERE id = 1`).Scan(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{"click"}, notifier.events)
}

func TestRecordClickUnknownOrExpiredLink(t *testing.T) {
	svc, db, fc := newClickService(t, nil)
	expired := fc.Now().Add(-time.Second)
	affiliatetest.NewSeeder(db).Link(t, affiliatetest.LinkFixture{ID: 2, KolID: 7, ProductID: 100, ShortCode: "gone0001", ExpiresAt: &expired})

	_, err := svc.RecordClick(context.Background(), "nope0001", domain.RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrInvalidLink)

	_, err = svc.RecordClick(context.Background(), "gone0001", domain.RequestMeta{})
	assert.ErrorIs(t, err, domain.ErrInvalidLink)

	var clicks int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM affiliate_clicks`).Scan(&clicks).Error)
	assert.Zero(t, clicks)
}

func TestConcurrentClicksDoNotLoseUpdates(t *testing.T) {
	svc, db, _ := newClickService(t, nil)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordClick(context.Background(), "abcd1234", domain.RequestMeta{IP: "198.51.100.1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Raw(`SELECT click_count FROM affiliate_links WHERE id = 1`).Scan(&count).Error)
	assert.Equal(t, int64(n), count)

	var rows int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM affiliate_clicks WHERE link_id = 1`).Scan(&rows).Error)
	assert.Equal(t, int64(n), rows)
}

func TestConvertLatestMarksNewestClickOnce(t *testing.T) {
	_, db, fc := newClickService(t, nil)
	seed := affiliatetest.NewSeeder(db)
	seed.Click(t, affiliatetest.ClickFixture{ID: 10, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: fc.Now().Add(-time.Hour)})
	seed.Click(t, affiliatetest.ClickFixture{ID: 11, LinkID: 1, KolID: 7, ProductID: 100, ClickedAt: fc.Now().Add(-time.Minute)})

	repo := repository.Provide()
	product := int64(100)
	ctx := context.Background()

	id, err := repo.ConvertLatest(ctx, db, domain.ConvertMatch{LinkID: 1, KolID: 7, ProductID: &product}, 99)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(11), *id)

	id, err = repo.ConvertLatest(ctx, db, domain.ConvertMatch{LinkID: 1, KolID: 7}, 100)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(10), *id)

	id, err = repo.ConvertLatest(ctx, db, domain.ConvertMatch{LinkID: 1, KolID: 7}, 101)
	require.NoError(t, err)
	assert.Nil(t, id)

	var conversionID int64
	require.NoError(t, db.Raw(`SELECT conversion_id FROM affiliate_clicks WHERE id = 11`).Scan(&conversionID).Error)
	assert.Equal(t, int64(99), conversionID)
}
