package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxUserAgentLen = 512
	maxReferrerLen  = 2048
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       domain.Repository
	LinkSvc    linkdomain.Service
	LinkRepo   linkdomain.Repository
	Notifier   realtimedomain.Notifier `optional:"true"`
	ObsMetrics *obsmetrics.Metrics     `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	linkSvc    linkdomain.Service
	linkRepo   linkdomain.Repository
	notifier   realtimedomain.Notifier
	obsMetrics *obsmetrics.Metrics

	baseURL string
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("click.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		linkSvc:    p.LinkSvc,
		linkRepo:   p.LinkRepo,
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
		baseURL:    strings.TrimRight(p.Config.Affiliate.BaseURL, "/"),
	}
}

func (s *Service) RecordClick(ctx context.Context, shortCode string, meta domain.RequestMeta) (*domain.RecordResult, error) {
	link, err := s.linkSvc.Resolve(ctx, shortCode)
	if err != nil {
		if errors.Is(err, linkdomain.ErrNotFound) || errors.Is(err, linkdomain.ErrLinkExpired) {
			return nil, domain.ErrInvalidLink
		}
		return nil, err
	}

	now := s.clock.Now()
	click := &domain.Click{
		ID:          s.genID.Generate().Int64(),
		LinkID:      link.ID,
		KolID:       link.KolID,
		ProductID:   link.ProductID,
		IPAddress:   AnonymizeIP(meta.IP),
		UserAgent:   truncate(meta.UserAgent, maxUserAgentLen),
		ReferrerURL: truncate(meta.Referrer, maxReferrerLen),
		ClickedAt:   now,
	}
	if len(meta.GeoLocation) > 0 {
		click.GeoLocation = datatypes.JSONMap(meta.GeoLocation)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, click); err != nil {
			return err
		}
		return s.linkRepo.IncrementClicks(ctx, tx, link.ID, now)
	})
	if err != nil {
		s.log.Error("record click failed", zap.Int64("link_id", link.ID), zap.Error(err))
		return nil, err
	}

	if s.obsMetrics != nil {
		platform := ""
		if link.Platform != nil {
			platform = *link.Platform
		}
		s.obsMetrics.RecordClick(ctx, platform)
	}
	if s.notifier != nil {
		s.notifier.NotifyKol(link.KolID, realtimedomain.EventClick)
	}

	return &domain.RecordResult{
		DestinationURL: s.destinationURL(link, click.ID),
		ClickID:        click.ID,
		LinkID:         link.ID,
		KolID:          link.KolID,
		ProductID:      link.ProductID,
		ShortCode:      link.ShortCode,
	}, nil
}

// destinationURL carries the attribution parameters the capture middleware
// reads on the product page.
func (s *Service) destinationURL(link *linkdomain.Link, clickID int64) string {
	kolID := strconv.FormatInt(link.KolID, 10)
	productID := strconv.FormatInt(link.ProductID, 10)

	q := url.Values{}
	q.Set("ref", kolID)
	q.Set("aff", strconv.FormatInt(link.ID, 10))
	q.Set("kol", kolID)
	q.Set("product", productID)
	q.Set("click", strconv.FormatInt(clickID, 10))
	q.Set("utm_source", "affiliate")
	q.Set("utm_medium", "kol")
	q.Set("utm_campaign", link.ShortCode)
	return fmt.Sprintf("%s/detail-product/%s?%s", s.baseURL, productID, q.Encode())
}

func truncate(v string, limit int) string {
	v = strings.TrimSpace(v)
	if len(v) <= limit {
		return v
	}
	return v[:limit]
}
