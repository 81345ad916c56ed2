package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Product, error)
}
