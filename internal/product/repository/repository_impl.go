package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/kolaffiliate/internal/product/domain"
	"gorm.io/gorm"
)

// The storefront owns the products table; nothing here writes to it.
type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// FindByID returns nil without an error when the product does not exist.
func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Model(&domain.Product{}).
		Select("id", "name", "price", "image_url").
		Where("id = ?", id).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []domain.Product
	if err := db.WithContext(ctx).Model(&domain.Product{}).
		Select("id", "name", "price", "image_url").
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}
