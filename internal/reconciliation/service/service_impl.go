package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	clickdomain "github.com/smallbiznis/kolaffiliate/internal/click/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	koldomain "github.com/smallbiznis/kolaffiliate/internal/kol/domain"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	realtimedomain "github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"github.com/smallbiznis/kolaffiliate/internal/reconciliation/domain"
	tierdomain "github.com/smallbiznis/kolaffiliate/internal/tier/domain"
	"github.com/smallbiznis/kolaffiliate/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	Ledger     ledgerdomain.Service
	LinkRepo   linkdomain.Repository
	ClickRepo  clickdomain.Repository
	KolRepo    koldomain.Repository
	Tier       tierdomain.Service      `optional:"true"`
	Notifier   realtimedomain.Notifier `optional:"true"`
	ObsMetrics *obsmetrics.Metrics     `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	ledger     ledgerdomain.Service
	linkRepo   linkdomain.Repository
	clickRepo  clickdomain.Repository
	kolRepo    koldomain.Repository
	tier       tierdomain.Service
	notifier   realtimedomain.Notifier
	obsMetrics *obsmetrics.Metrics

	window   time.Duration
	decide   func(item domain.OrderItem, attr *attributiondomain.ClientAttribution, now time.Time) domain.Decision
	runAsync func(func())
}

func New(p Params) domain.Service {
	window := p.Config.Affiliate.RecentClickWindow
	if window <= 0 {
		window = domain.DefaultRecentClickWindow
	}
	decide := func(item domain.OrderItem, attr *attributiondomain.ClientAttribution, now time.Time) domain.Decision {
		return domain.ShouldAttributeItem(item, attr, now, window)
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reconciliation.service"),
		clock:      p.Clock,
		ledger:     p.Ledger,
		linkRepo:   p.LinkRepo,
		clickRepo:  p.ClickRepo,
		kolRepo:    p.KolRepo,
		tier:       p.Tier,
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
		window:     window,
		decide:     decide,
		runAsync:   func(fn func()) { go fn() },
	}
}

// credit is the link and KOL an order is credited to, resolved once per order.
type credit struct {
	link *linkdomain.Link
	kol  *koldomain.Kol
	rate float64
	// reason is set when the credit does not qualify.
	reason string

	// An order converts at most one click. clickID is that click, once
	// clickSettled says the lookup has run.
	clickID      *int64
	clickSettled bool
}

func (s *Service) ProcessOrderAttribution(ctx context.Context, req domain.OrderAttributionRequest) (*domain.OrderAttributionResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	if err := domain.ValidateAttributionData(req); err != nil {
		return nil, err
	}
	attr := req.Attribution
	if attr != nil {
		a := *attr
		a.Normalize()
		attr = &a
	}

	now := s.clock.Now()
	result := &domain.OrderAttributionResult{
		OrderID:      req.OrderID,
		TotalItems:   len(req.Items),
		KolsInvolved: []domain.ID{},
		ItemResults:  make([]domain.ItemResult, 0, len(req.Items)),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cr, err := s.anchorAttribution(ctx, tx, attr, now)
		if err != nil {
			return err
		}
		for _, item := range req.Items {
			decision := s.decide(item, attr, now)
			ir := domain.ItemResult{ProductID: item.ProductID, Reason: decision.Reason}

			if decision.Attribute && cr == nil {
				resolved, err := s.resolveCredit(ctx, tx, attr)
				if err != nil {
					return err
				}
				cr = resolved
			}
			if decision.Attribute && cr.reason != "" {
				decision.Attribute = false
				ir.Reason = cr.reason
			}
			if !decision.Attribute {
				result.ItemResults = append(result.ItemResults, ir)
				continue
			}

			row, err := s.attributeItem(ctx, tx, req.OrderID, item, decision, cr, attr, now)
			if err != nil {
				return err
			}
			rowID := domain.ID(row.ID)
			ir.Attributed = true
			ir.AttributionType = string(decision.Type)
			ir.Revenue = row.Revenue
			ir.Commission = row.Commission
			ir.CommissionRate = row.CommissionRate
			ir.AffiliateOrderID = &rowID
			result.ItemResults = append(result.ItemResults, ir)

			result.AttributedItems++
			result.TotalAttributedRevenue = money.Round2(result.TotalAttributedRevenue + row.Revenue)
			result.TotalCommissions = money.Round2(result.TotalCommissions + row.Commission)
			if len(result.KolsInvolved) == 0 {
				result.KolsInvolved = append(result.KolsInvolved, domain.ID(cr.kol.ID))
			}
			s.log.Debug("order item attributed",
				zap.String("order_id", req.OrderID),
				zap.Int64("product_id", int64(item.ProductID)),
				zap.Int64("ledger_id", row.ID),
				zap.Bool("click_converted", row.ClickID != nil),
			)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrDuplicateEntry) {
			return nil, domain.ErrOrderAlreadyReconciled
		}
		return nil, err
	}

	for _, ir := range result.ItemResults {
		s.obsMetrics.RecordItemReconciled(ctx, ir.Attributed, ir.Reason)
		if ir.Attributed {
			s.obsMetrics.RecordCommissionCreated(ctx, ir.AttributionType)
		}
	}
	s.log.Info("order attribution processed",
		zap.String("order_id", result.OrderID),
		zap.Int("total_items", result.TotalItems),
		zap.Int("attributed_items", result.AttributedItems),
		zap.Float64("revenue", result.TotalAttributedRevenue),
		zap.Float64("commission", result.TotalCommissions),
	)

	kolIDs := make([]int64, 0, len(result.KolsInvolved))
	for _, id := range result.KolsInvolved {
		kolIDs = append(kolIDs, int64(id))
	}
	s.afterCommit(ctx, kolIDs)
	return result, nil
}

// anchorAttribution replaces the client-held click time with the recorded
// one whenever the attribution names a click, so an edited timestamp cannot
// revive an old credit. A named click that does not belong to the credited
// link and KOL voids the credit. Without a click only a future timestamp is
// pulled back to now.
func (s *Service) anchorAttribution(ctx context.Context, tx *gorm.DB, attr *attributiondomain.ClientAttribution, now time.Time) (*credit, error) {
	if !attr.Valid() {
		return nil, nil
	}
	clickID := attr.ClickIDValue()
	if clickID == nil {
		if attr.Timestamp.After(now) {
			attr.Anchor(now)
		}
		return nil, nil
	}

	click, err := s.clickRepo.FindByID(ctx, tx, *clickID)
	if err != nil {
		return nil, err
	}
	if click == nil || click.LinkID != int64(attr.AffiliateID) || click.KolID != int64(attr.KolID) {
		s.log.Warn("attribution names an unknown click",
			zap.Int64("click_id", *clickID),
			zap.Int64("link_id", int64(attr.AffiliateID)),
		)
		return &credit{reason: domain.ReasonClickNotFound}, nil
	}
	attr.Anchor(click.ClickedAt)
	return nil, nil
}

func (s *Service) resolveCredit(ctx context.Context, tx *gorm.DB, attr *attributiondomain.ClientAttribution) (*credit, error) {
	link, err := s.linkRepo.FindByID(ctx, tx, int64(attr.AffiliateID))
	if err != nil {
		return nil, err
	}
	if link == nil || link.KolID != int64(attr.KolID) {
		return &credit{reason: domain.ReasonLinkNotFound}, nil
	}
	k, err := s.kolRepo.FindByID(ctx, tx, link.KolID)
	if err != nil {
		return nil, err
	}
	if !k.Approved() {
		return &credit{reason: domain.ReasonKolNotApproved}, nil
	}

	rate := k.KolCommissionRate
	if rate <= 0 {
		rate = s.table().RateFor(k.TotalSales).RatePercent
	}
	return &credit{link: link, kol: k, rate: rate}, nil
}

func (s *Service) attributeItem(
	ctx context.Context,
	tx *gorm.DB,
	orderID string,
	item domain.OrderItem,
	decision domain.Decision,
	cr *credit,
	attr *attributiondomain.ClientAttribution,
	now time.Time,
) (*ledgerdomain.AffiliateOrder, error) {
	revenue := money.LineRevenue(item.UnitPrice, item.Quantity)
	commission := money.Commission(revenue, cr.rate)

	row, err := s.ledger.Append(ctx, tx, ledgerdomain.NewEntry{
		KolID:           cr.kol.ID,
		OrderID:         orderID,
		ProductID:       int64(item.ProductID),
		LinkID:          cr.link.ID,
		Quantity:        item.Quantity,
		UnitPrice:       item.UnitPrice,
		Revenue:         revenue,
		CommissionRate:  cr.rate,
		Commission:      commission,
		AttributionType: ledgerdomain.AttributionType(decision.Type),
		Reason:          decision.Reason,
		Metadata: map[string]any{
			"short_code":   cr.link.ShortCode,
			"clicked_at":   attr.Timestamp,
			"link_product": cr.link.ProductID,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.linkRepo.AddConversion(ctx, tx, cr.link.ID, revenue, commission, now); err != nil {
		return nil, err
	}

	if err := s.convertClick(ctx, tx, cr, attr, row.ID); err != nil {
		return nil, err
	}
	if cr.clickID != nil {
		if err := s.ledger.AttachClick(ctx, tx, row.ID, *cr.clickID); err != nil {
			return nil, err
		}
		row.ClickID = cr.clickID
	}
	return row, nil
}

// convertClick flags the visitor's click on the order's first attributed
// row. The named click is converted or nothing is; without one the latest
// open click on the link stands in.
func (s *Service) convertClick(ctx context.Context, tx *gorm.DB, cr *credit, attr *attributiondomain.ClientAttribution, conversionID int64) error {
	if cr.clickSettled {
		return nil
	}
	productID := cr.link.ProductID
	match := clickdomain.ConvertMatch{
		LinkID:    cr.link.ID,
		KolID:     cr.kol.ID,
		ProductID: &productID,
		ClickID:   attr.ClickIDValue(),
	}
	clickID, err := s.clickRepo.ConvertLatest(ctx, tx, match, conversionID)
	if err != nil {
		return err
	}
	cr.clickID = clickID
	cr.clickSettled = true
	return nil
}

// afterCommit refreshes tiers and pushes stats for the KOLs an order touched.
// Failures are logged; the next scheduled pass repairs them.
func (s *Service) afterCommit(ctx context.Context, kolIDs []int64) {
	if len(kolIDs) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.runAsync(func() {
		for _, kolID := range kolIDs {
			if s.tier != nil {
				if _, err := s.tier.RecalculateKol(detached, kolID); err != nil {
					s.log.Warn("post-commit tier recalculation failed",
						zap.Int64("kol_id", kolID),
						zap.Error(err),
					)
				}
			}
			if s.notifier != nil {
				s.notifier.NotifyKol(kolID, realtimedomain.EventConversion)
			}
		}
	})
}

func (s *Service) table() tierdomain.Table {
	if s.tier == nil {
		return tierdomain.DefaultTable()
	}
	return s.tier.Table()
}

func (s *Service) GetOrderAttributionSummary(ctx context.Context, orderID string, viewer domain.Viewer) (*domain.OrderSummary, error) {
	rows, err := s.ledger.ListByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	if !viewer.Admin {
		own := rows[:0:0]
		for _, row := range rows {
			if row.KolID == viewer.UserID {
				own = append(own, row)
			}
		}
		if len(own) == 0 {
			return nil, domain.ErrForbidden
		}
		rows = own
	}

	summary := &domain.OrderSummary{OrderID: strings.TrimSpace(orderID), TotalItems: len(rows)}
	byKol := make(map[int64]*domain.KolSummary)
	for _, row := range rows {
		ks, ok := byKol[row.KolID]
		if !ok {
			ks = &domain.KolSummary{KolID: domain.ID(row.KolID)}
			byKol[row.KolID] = ks
		}
		ks.Items = append(ks.Items, toSummaryItem(row))
		ks.TotalRevenue = money.Round2(ks.TotalRevenue + row.Revenue)
		ks.TotalCommission = money.Round2(ks.TotalCommission + row.Commission)
		summary.TotalRevenue = money.Round2(summary.TotalRevenue + row.Revenue)
		summary.TotalCommission = money.Round2(summary.TotalCommission + row.Commission)
	}
	for _, ks := range byKol {
		summary.Kols = append(summary.Kols, *ks)
	}
	sort.Slice(summary.Kols, func(i, j int) bool { return summary.Kols[i].KolID < summary.Kols[j].KolID })
	return summary, nil
}

func (s *Service) TransitionOrder(ctx context.Context, orderID, status string) (*domain.TransitionResult, error) {
	to, ok := ledgerdomain.ParseStatus(strings.ToLower(strings.TrimSpace(status)))
	if !ok {
		return nil, domain.ErrInvalidStatus
	}
	res, err := s.ledger.Transition(ctx, orderID, to)
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	s.afterCommit(ctx, res.KolIDs)
	return &domain.TransitionResult{OrderID: res.OrderID, Status: string(res.Status), Rows: res.Rows}, nil
}

func toSummaryItem(row ledgerdomain.AffiliateOrder) domain.SummaryItem {
	item := domain.SummaryItem{
		ID:              domain.ID(row.ID),
		ProductID:       domain.ID(row.ProductID),
		LinkID:          domain.ID(row.LinkID),
		Quantity:        row.Quantity,
		UnitPrice:       row.UnitPrice,
		Revenue:         row.Revenue,
		CommissionRate:  row.CommissionRate,
		Commission:      row.Commission,
		Status:          string(row.Status),
		AttributionType: string(row.AttributionType),
		Reason:          row.Reason,
		CreatedAt:       row.CreatedAt,
		ConfirmedAt:     row.ConfirmedAt,
	}
	if row.ClickID != nil {
		id := domain.ID(*row.ClickID)
		item.ClickID = &id
	}
	return item
}
