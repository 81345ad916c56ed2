package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"github.com/smallbiznis/kolaffiliate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     ledgerdomain.Repository
	LinkRepo linkdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     ledgerdomain.Repository
	linkRepo linkdomain.Repository
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		linkRepo: p.LinkRepo,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, entry ledgerdomain.NewEntry) (*ledgerdomain.AffiliateOrder, error) {
	entry.OrderID = strings.TrimSpace(entry.OrderID)
	if entry.OrderID == "" {
		return nil, ledgerdomain.ErrInvalidOrderID
	}
	if entry.KolID == 0 || entry.ProductID == 0 || entry.LinkID == 0 || entry.Quantity <= 0 {
		return nil, ledgerdomain.ErrInvalidEntry
	}
	if entry.Revenue < 0 || entry.Commission < 0 || entry.CommissionRate < 0 {
		return nil, ledgerdomain.ErrInvalidEntry
	}
	switch entry.AttributionType {
	case ledgerdomain.AttributionSpecific, ledgerdomain.AttributionGeneral:
	default:
		return nil, ledgerdomain.ErrInvalidEntry
	}

	now := s.clock.Now()
	row := &ledgerdomain.AffiliateOrder{
		ID:              s.genID.Generate().Int64(),
		KolID:           entry.KolID,
		OrderID:         entry.OrderID,
		ProductID:       entry.ProductID,
		LinkID:          entry.LinkID,
		ClickID:         entry.ClickID,
		Quantity:        entry.Quantity,
		UnitPrice:       entry.UnitPrice,
		Revenue:         entry.Revenue,
		CommissionRate:  entry.CommissionRate,
		Commission:      entry.Commission,
		Status:          ledgerdomain.StatusPending,
		AttributionType: entry.AttributionType,
		Reason:          entry.Reason,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if len(entry.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(entry.Metadata)
	}

	if err := s.repo.Insert(ctx, tx, row); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, ledgerdomain.ErrDuplicateEntry
		}
		return nil, err
	}
	return row, nil
}

func (s *Service) AttachClick(ctx context.Context, tx *gorm.DB, id, clickID int64) error {
	if id == 0 || clickID == 0 {
		return ledgerdomain.ErrInvalidEntry
	}
	return s.repo.AttachClick(ctx, tx, id, clickID)
}

func (s *Service) ListByOrder(ctx context.Context, orderID string) ([]ledgerdomain.AffiliateOrder, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ledgerdomain.ErrInvalidOrderID
	}
	rows, err := s.repo.ListByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ledgerdomain.ErrNotFound
	}
	return rows, nil
}

func (s *Service) Transition(ctx context.Context, orderID string, to ledgerdomain.Status) (*ledgerdomain.TransitionResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ledgerdomain.ErrInvalidOrderID
	}
	if !ledgerdomain.CanTransition(ledgerdomain.StatusPending, to) {
		return nil, ledgerdomain.ErrInvalidTransition
	}

	result := &ledgerdomain.TransitionResult{OrderID: orderID, Status: to}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.ListByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ledgerdomain.ErrNotFound
		}

		pending := make([]ledgerdomain.AffiliateOrder, 0, len(rows))
		for _, row := range rows {
			if row.Status == ledgerdomain.StatusPending {
				pending = append(pending, row)
			}
		}
		if len(pending) == 0 {
			return ledgerdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		var confirmedAt *time.Time
		if to == ledgerdomain.StatusCompleted {
			confirmedAt = &now
		}
		moved, err := s.repo.UpdateStatus(ctx, tx, orderID, ledgerdomain.StatusPending, to, confirmedAt, now)
		if err != nil {
			return err
		}
		if moved != int64(len(pending)) {
			// another writer moved rows between read and update
			return ledgerdomain.ErrInvalidTransition
		}

		seen := make(map[int64]struct{})
		for _, row := range pending {
			if to == ledgerdomain.StatusCancelled {
				if err := s.linkRepo.RemoveConversion(ctx, tx, row.LinkID, row.Revenue, row.Commission, now); err != nil {
					return err
				}
			}
			if _, ok := seen[row.KolID]; !ok {
				seen[row.KolID] = struct{}{}
				result.KolIDs = append(result.KolIDs, row.KolID)
			}
		}
		result.Rows = moved
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ledger order transitioned",
		zap.String("order_id", orderID),
		zap.String("status", string(to)),
		zap.Int64("rows", result.Rows),
	)
	return result, nil
}

func (s *Service) CompletedRevenue(ctx context.Context, kolID int64) (float64, error) {
	return s.repo.CompletedRevenue(ctx, s.db, kolID)
}

func (s *Service) TotalsByStatus(ctx context.Context, kolID int64) (map[ledgerdomain.Status]ledgerdomain.StatusTotal, error) {
	rows, err := s.repo.TotalsByStatus(ctx, s.db, kolID)
	if err != nil {
		return nil, err
	}
	out := map[ledgerdomain.Status]ledgerdomain.StatusTotal{
		ledgerdomain.StatusPending:   {Status: ledgerdomain.StatusPending},
		ledgerdomain.StatusCompleted: {Status: ledgerdomain.StatusCompleted},
		ledgerdomain.StatusCancelled: {Status: ledgerdomain.StatusCancelled},
	}
	for _, row := range rows {
		out[row.Status] = row
	}
	return out, nil
}

func (s *Service) Window(ctx context.Context, kolID int64, from, to time.Time) (ledgerdomain.WindowTotals, error) {
	return s.repo.Window(ctx, s.db, kolID, from.UTC(), to.UTC())
}
