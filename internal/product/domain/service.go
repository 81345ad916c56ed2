package domain

import (
	"context"
	"errors"
	"strconv"
)

type Service interface {
	Get(ctx context.Context, id int64) (*Product, error)
	// Summaries returns a lookup of product summaries keyed by id. Unknown ids are absent.
	Summaries(ctx context.Context, ids []int64) (map[int64]Summary, error)
}

// Summary is the product shape embedded in link listings and dashboards.
type Summary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

func (p *Product) Summary() Summary {
	return Summary{
		ID:       strconv.FormatInt(p.ID, 10),
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}
}

var (
	ErrNotFound  = errors.New("product_not_found")
	ErrInvalidID = errors.New("invalid_product_id")
)
