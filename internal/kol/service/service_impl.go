package service

import (
	"context"

	"github.com/smallbiznis/kolaffiliate/internal/kol/domain"
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
		log:  p.Log.Named("kol.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Kol, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	k, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, domain.ErrNotFound
	}
	return k, nil
}

func (s *Service) RequireApproved(ctx context.Context, id int64) (*domain.Kol, error) {
	k, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !k.Approved() {
		return nil, domain.ErrNotApprovedKol
	}
	return k, nil
}
