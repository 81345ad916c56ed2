package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/cache"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
	"github.com/smallbiznis/kolaffiliate/pkg/db"
	"github.com/smallbiznis/kolaffiliate/pkg/db/pagination"
	"github.com/smallbiznis/kolaffiliate/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxShortCodeAttempts = 5

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       domain.Repository
	KolSvc     koldomain.Service
	ProductSvc productdomain.Service
	LinkCache  cache.Cache[string, domain.Link] `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	kolSvc     koldomain.Service
	productSvc productdomain.Service
	linkCache  cache.Cache[string, domain.Link]

	baseURL   string
	codeLen   int
	cacheTTL  time.Duration
	newCodeFn func(n int) (string, error)
}

func New(p Params) domain.Service {
	codeLen := p.Config.Affiliate.ShortCodeLength
	if codeLen <= 0 {
		codeLen = 8
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("affiliatelink.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		kolSvc:     p.KolSvc,
		productSvc: p.ProductSvc,
		linkCache:  p.LinkCache,
		baseURL:    strings.TrimRight(p.Config.Affiliate.BaseURL, "/"),
		codeLen:    codeLen,
		cacheTTL:   p.Config.Affiliate.LinkCacheTTL,
		newCodeFn:  newShortCode,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	if _, err := s.kolSvc.RequireApproved(ctx, req.KolID); err != nil {
		return nil, err
	}

	productID, err := strconv.ParseInt(strings.TrimSpace(req.ProductID), 10, 64)
	if err != nil || productID <= 0 {
		return nil, domain.ErrInvalidProductID
	}
	if _, err := s.productSvc.Get(ctx, productID); err != nil {
		return nil, err
	}

	var platform *string
	if raw := strings.TrimSpace(req.Platform); raw != "" {
		normalized := slug.Make(raw)
		if normalized == "" || len(normalized) > 64 {
			return nil, domain.ErrInvalidPlatform
		}
		platform = &normalized
	}

	now := s.clock.Now()
	link := &domain.Link{
		ID:          s.genID.Generate().Int64(),
		KolID:       req.KolID,
		ProductID:   productID,
		OriginalURL: fmt.Sprintf("%s/detail-product/%d?ref=%d", s.baseURL, productID, req.KolID),
		Platform:    platform,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 1; ; attempt++ {
		code, err := s.newCodeFn(s.codeLen)
		if err != nil {
			return nil, err
		}
		link.ShortCode = code
		link.ShortURL = fmt.Sprintf("%s/a/%s", s.baseURL, code)

		err = s.repo.Create(ctx, s.db, link)
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		if attempt >= maxShortCodeAttempts {
			s.log.Error("short code space exhausted", zap.Int("attempts", attempt))
			return nil, domain.ErrShortCodeExhausted
		}
		s.log.Debug("short code collision, retrying", zap.Int("attempt", attempt))
	}

	resp := toResponse(link)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	if _, err := s.kolSvc.RequireApproved(ctx, req.KolID); err != nil {
		return nil, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	limit := page.Limit()

	var after *domain.ListCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		after = &domain.ListCursor{ID: cursor.ID, CreatedAt: createdAt}
	}

	items, err := s.repo.ListByKol(ctx, s.db, req.KolID, after, limit+1)
	if err != nil {
		return nil, err
	}
	items, info := pagination.BuildCursorPageInfo(items, limit, func(l domain.Link) pagination.Cursor {
		return pagination.Cursor{ID: l.ID, CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339Nano)}
	})

	productIDs := make([]int64, 0, len(items))
	for _, l := range items {
		productIDs = append(productIDs, l.ProductID)
	}
	products, err := s.productSvc.Summaries(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	out := &domain.ListResponse{
		Links:         make([]domain.LinkStats, 0, len(items)),
		NextPageToken: info.NextPageToken,
		HasMore:       info.HasMore,
	}
	for i := range items {
		l := &items[i]
		stats := domain.LinkStats{
			Response:       toResponse(l),
			ProductID:      strconv.FormatInt(l.ProductID, 10),
			ClickCount:     l.ClickCount,
			Conversions:    l.Conversions,
			Revenue:        money.Round2(l.Revenue),
			Commission:     money.Round2(l.Commission),
			ConversionRate: money.Percent(float64(l.Conversions), float64(l.ClickCount)),
			ExpiresAt:      l.ExpiresAt,
		}
		if p, ok := products[l.ProductID]; ok {
			stats.Product = &p
		}
		out.Links = append(out.Links, stats)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Link, error) {
	link, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (s *Service) Resolve(ctx context.Context, shortCode string) (*domain.Link, error) {
	shortCode = strings.TrimSpace(shortCode)
	if !validShortCode(shortCode) {
		return nil, domain.ErrNotFound
	}

	link, err := s.lookup(ctx, shortCode)
	if err != nil {
		return nil, err
	}
	if link.Expired(s.clock.Now()) {
		return nil, domain.ErrLinkExpired
	}
	return link, nil
}

func (s *Service) lookup(ctx context.Context, shortCode string) (*domain.Link, error) {
	if s.linkCache != nil {
		if cached, ok := s.linkCache.Get(shortCode); ok {
			return &cached, nil
		}
	}

	link, err := s.repo.FindByShortCode(ctx, s.db, shortCode)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	// identity fields only; counters in the cached copy go stale
	if s.linkCache != nil && s.cacheTTL > 0 {
		s.linkCache.Set(shortCode, *link, s.cacheTTL)
	}
	return link, nil
}

func toResponse(l *domain.Link) domain.Response {
	return domain.Response{
		ID:          strconv.FormatInt(l.ID, 10),
		ShortCode:   l.ShortCode,
		OriginalURL: l.OriginalURL,
		ShortURL:    l.ShortURL,
		Platform:    l.Platform,
		CreatedAt:   l.CreatedAt,
	}
}
