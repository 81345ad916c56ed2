package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	attributionservice "github.com/smallbiznis/kolaffiliate/internal/attribution/service"
	attributionstore "github.com/smallbiznis/kolaffiliate/internal/attribution/store"
	authdomain "github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	authservice "github.com/smallbiznis/kolaffiliate/internal/auth/service"
	"github.com/smallbiznis/kolaffiliate/internal/auth/session"
	"github.com/smallbiznis/kolaffiliate/internal/authorization"
	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	dashboarddomain "github.com/smallbiznis/kolaffiliate/internal/dashboard/domain"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	"github.com/smallbiznis/kolaffiliate/internal/observability"
	"github.com/smallbiznis/kolaffiliate/internal/ratelimit"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	reconciliationdomain "github.com/smallbiznis/kolaffiliate/internal/reconciliation/domain"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAdminID    int64 = 1
	testKolID      int64 = 7
	testPendingKol int64 = 8
	testShortCode        = "abc12345"
)

type fakeKolService struct {
	kols map[int64]*koldomain.Kol
}

func (f *fakeKolService) Get(ctx context.Context, id int64) (*koldomain.Kol, error) {
	kol, ok := f.kols[id]
	if !ok {
		return nil, koldomain.ErrNotFound
	}
	return kol, nil
}

func (f *fakeKolService) RequireApproved(ctx context.Context, id int64) (*koldomain.Kol, error) {
	kol, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !kol.Approved() {
		return nil, koldomain.ErrNotApprovedKol
	}
	return kol, nil
}

type fakeLinkService struct {
	created []linkdomain.CreateRequest
	listed  []linkdomain.ListRequest
}

func (f *fakeLinkService) Create(ctx context.Context, req linkdomain.CreateRequest) (*linkdomain.Response, error) {
	f.created = append(f.created, req)
	return &linkdomain.Response{
		ID:        "900",
		ShortCode: testShortCode,
		ShortURL:  "http://shop.test/a/" + testShortCode,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeLinkService) List(ctx context.Context, req linkdomain.ListRequest) (*linkdomain.ListResponse, error) {
	f.listed = append(f.listed, req)
	return &linkdomain.ListResponse{Links: []linkdomain.LinkStats{}}, nil
}

func (f *fakeLinkService) Get(ctx context.Context, id int64) (*linkdomain.Link, error) {
	return nil, linkdomain.ErrNotFound
}

func (f *fakeLinkService) Resolve(ctx context.Context, shortCode string) (*linkdomain.Link, error) {
	return nil, linkdomain.ErrNotFound
}

type fakeClickService struct {
	calls int
	metas []clickdomain.RequestMeta
}

func (f *fakeClickService) RecordClick(ctx context.Context, shortCode string, meta clickdomain.RequestMeta) (*clickdomain.RecordResult, error) {
	f.calls++
	f.metas = append(f.metas, meta)
	if shortCode != testShortCode {
		return nil, clickdomain.ErrInvalidLink
	}
	return &clickdomain.RecordResult{
		DestinationURL: "http://shop.test/detail-product/42?ref=7&aff=900&kol=7&product=42&click=555",
		ClickID:        555,
		LinkID:         900,
		KolID:          testKolID,
		ProductID:      42,
		ShortCode:      shortCode,
	}, nil
}

type fakeReconciliation struct {
	processErr   error
	requests     []reconciliationdomain.OrderAttributionRequest
	viewers      []reconciliationdomain.Viewer
	transitions  []string
	summaryOwner int64
}

func (f *fakeReconciliation) ProcessOrderAttribution(ctx context.Context, req reconciliationdomain.OrderAttributionRequest) (*reconciliationdomain.OrderAttributionResult, error) {
	if err := reconciliationdomain.ValidateAttributionData(req); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	if f.processErr != nil {
		return nil, f.processErr
	}
	result := &reconciliationdomain.OrderAttributionResult{
		OrderID:      req.OrderID,
		TotalItems:   len(req.Items),
		KolsInvolved: []reconciliationdomain.ID{},
	}
	if req.Attribution != nil {
		result.AttributedItems = len(req.Items)
		result.KolsInvolved = append(result.KolsInvolved, req.Attribution.KolID)
	}
	return result, nil
}

func (f *fakeReconciliation) GetOrderAttributionSummary(ctx context.Context, orderID string, viewer reconciliationdomain.Viewer) (*reconciliationdomain.OrderSummary, error) {
	f.viewers = append(f.viewers, viewer)
	if !viewer.Admin && viewer.UserID != f.summaryOwner {
		return nil, reconciliationdomain.ErrForbidden
	}
	return &reconciliationdomain.OrderSummary{OrderID: orderID}, nil
}

func (f *fakeReconciliation) TransitionOrder(ctx context.Context, orderID, status string) (*reconciliationdomain.TransitionResult, error) {
	f.transitions = append(f.transitions, status)
	return &reconciliationdomain.TransitionResult{OrderID: orderID, Status: status, Rows: 1}, nil
}

type fakeDashboard struct {
	requests []dashboarddomain.Request
}

func (f *fakeDashboard) Get(ctx context.Context, req dashboarddomain.Request) (*dashboarddomain.Dashboard, error) {
	f.requests = append(f.requests, req)
	if req.Period == "2w" {
		return nil, dashboarddomain.ErrInvalidPeriod
	}
	return &dashboarddomain.Dashboard{Period: dashboarddomain.Period{Period: "30d"}}, nil
}

type fakeTierService struct {
	recalculated []int64
}

func (f *fakeTierService) Table() tierdomain.Table { return tierdomain.DefaultTable() }

func (f *fakeTierService) ComputeTotalSales(ctx context.Context, kolID int64) (float64, error) {
	return 0, nil
}

func (f *fakeTierService) RecalculateKol(ctx context.Context, kolID int64) (*tierdomain.TierChange, error) {
	f.recalculated = append(f.recalculated, kolID)
	return &tierdomain.TierChange{KolID: kolID, OldTier: "bronze", NewTier: "standard", TierChanged: true}, nil
}

func (f *fakeTierService) RecalculateAll(ctx context.Context, opts tierdomain.BatchOptions) (*tierdomain.BatchResult, error) {
	return &tierdomain.BatchResult{Processed: 2, Updated: 1}, nil
}

func (f *fakeTierService) EligibleForUpgrade(ctx context.Context, limit int) ([]tierdomain.Candidate, error) {
	return []tierdomain.Candidate{{KolID: testKolID, NewTier: "standard"}}, nil
}

func (f *fakeTierService) RecalculateEligible(ctx context.Context, limit int) (*tierdomain.BatchResult, error) {
	return &tierdomain.BatchResult{}, nil
}

func (f *fakeTierService) Statistics(ctx context.Context) ([]tierdomain.Statistic, error) {
	return []tierdomain.Statistic{{Tier: "bronze", Count: 3}}, nil
}

type fakeStatsService struct {
	computed []int64
}

func (f *fakeStatsService) Compute(ctx context.Context, kolID int64) (*realtimedomain.Stats, error) {
	f.computed = append(f.computed, kolID)
	return &realtimedomain.Stats{
		Overview:  realtimedomain.Overview{ActiveLinks: kolID + 1},
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}, nil
}

// fakeAuthz grants every action to admins only.
type fakeAuthz struct{}

func (fakeAuthz) Authorize(ctx context.Context, role, object, action string) error {
	if role == authdomain.RoleAdmin {
		return nil
	}
	return authorization.ErrForbidden
}

type testServer struct {
	srv       *Server
	verifier  *authservice.Service
	kols      *fakeKolService
	links     *fakeLinkService
	clicks    *fakeClickService
	recon     *fakeReconciliation
	dashboard *fakeDashboard
	tiers     *fakeTierService
	stats     *fakeStatsService
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Environment:   "test",
		AuthJWTSecret: "test-secret",
		RateLimit:     config.RateLimitConfig{ClickEnabled: false},
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	clk := clock.NewFakeClock(time.Now())
	verifier, err := authservice.NewVerifier(cfg.AuthJWTSecret, clk, zap.NewNop())
	require.NoError(t, err)

	limiter, err := ratelimit.NewClickLimiter(ratelimit.ClickLimiterParams{Config: cfg, Log: zap.NewNop()})
	require.NoError(t, err)

	ts := &testServer{
		verifier: verifier,
		kols: &fakeKolService{kols: map[int64]*koldomain.Kol{
			testAdminID:    {ID: testAdminID, Role: authdomain.RoleAdmin, IsKol: true, KolStatus: koldomain.StatusApproved},
			testKolID:      {ID: testKolID, Role: authdomain.RoleKol, IsKol: true, KolStatus: koldomain.StatusApproved},
			testPendingKol: {ID: testPendingKol, Role: authdomain.RoleKol, IsKol: true, KolStatus: koldomain.StatusPending},
		}},
		links:     &fakeLinkService{},
		clicks:    &fakeClickService{},
		recon:     &fakeReconciliation{summaryOwner: testKolID},
		dashboard: &fakeDashboard{},
		tiers:     &fakeTierService{},
		stats:     &fakeStatsService{},
	}

	cache := attributionservice.NewCache(zap.NewNop(), clk, attributionstore.NewCookieStore(false, clk), nil)

	ts.srv = NewServer(ServerParams{
		Gin:            NewEngine(observability.Config{Environment: "test"}, nil),
		Cfg:            cfg,
		Log:            zap.NewNop(),
		Verifier:       verifier,
		Sessions:       session.NewManager(cfg),
		AuthzSvc:       fakeAuthz{},
		KolSvc:         ts.kols,
		LinkSvc:        ts.links,
		ClickSvc:       ts.clicks,
		Attribution:    cache,
		Reconciliation: ts.recon,
		DashboardSvc:   ts.dashboard,
		TierSvc:        ts.tiers,
		StatsSvc:       ts.stats,
		ClickLimiter:   limiter,
	})
	return ts
}

func (ts *testServer) token(t *testing.T, userID int64, role string) string {
	t.Helper()
	token, err := ts.verifier.Issue(authdomain.Actor{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookies(cookies []*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func (ts *testServer) do(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	decodeBody(t, rec, &resp)
	return resp.Error
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func attributionCookie(t *testing.T, ts *testServer, query string) []*http.Cookie {
	t.Helper()
	rec := ts.do(http.MethodGet, "/affiliate/attribution?"+query, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(rec, attributiondomain.CookieName)
	require.NotNil(t, cookie)
	return []*http.Cookie{cookie}
}
