package domain

import (
	"context"
	"errors"
	"time"

	productdomain "github.com/smallbiznis/kolaffiliate/internal/product/domain"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id int64) (*Link, error)
	// Resolve looks up a live link by short code.
	Resolve(ctx context.Context, shortCode string) (*Link, error)
}

type CreateRequest struct {
	KolID     int64  `json:"-"`
	ProductID string `json:"productId"`
	Platform  string `json:"platform"`
}

type ListRequest struct {
	KolID     int64
	PageToken string
	PageSize  int
}

type Response struct {
	ID          string    `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	ShortURL    string    `json:"shortUrl"`
	Platform    *string   `json:"platform"`
	CreatedAt   time.Time `json:"createdAt"`
}

type LinkStats struct {
	Response
	ProductID      string                 `json:"productId"`
	ClickCount     int64                  `json:"clickCount"`
	Conversions    int64                  `json:"conversions"`
	Revenue        float64                `json:"revenue"`
	Commission     float64                `json:"commission"`
	ConversionRate float64                `json:"conversionRate"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	Product        *productdomain.Summary `json:"product,omitempty"`
}

type ListResponse struct {
	Links         []LinkStats `json:"links"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
	HasMore       bool        `json:"hasMore"`
}

var (
	ErrNotFound           = errors.New("link_not_found")
	ErrLinkExpired        = errors.New("link_expired")
	ErrInvalidShortCode   = errors.New("invalid_short_code")
	ErrInvalidProductID   = errors.New("invalid_product_id")
	ErrShortCodeExhausted = errors.New("short_code_exhausted")
	ErrInvalidPlatform    = errors.New("invalid_platform")
)
