package service

import (
	"context"

	"github.com/smallbiznis/kolaffiliate/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("product.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	p, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *Service) Summaries(ctx context.Context, ids []int64) (map[int64]domain.Summary, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	items, err := s.repo.FindByIDs(ctx, s.db, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]domain.Summary, len(items))
	for i := range items {
		out[items[i].ID] = items[i].Summary()
	}
	return out, nil
}
