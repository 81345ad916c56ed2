package domain

import (
	"context"
	"errors"
	"net/http"
)

const (
	CookieName        = "affiliate_attribution"
	SessionCookieName = "affiliate_session"
)

// Carrier is the per-request cookie surface; *gin.Context satisfies it.
type Carrier interface {
	Cookie(name string) (string, error)
	SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool)
	SetSameSite(samesite http.SameSite)
}

// Store is one of the redundant places an attribution is kept. Load returns
// nil without error when nothing is stored and ErrMalformed when the stored
// payload cannot be decoded.
type Store interface {
	Name() string
	Load(ctx context.Context, c Carrier) (*ClientAttribution, error)
	Save(ctx context.Context, c Carrier, a ClientAttribution) error
	Delete(ctx context.Context, c Carrier) error
}

// Cache reads and writes both stores. Reads never fail: anything unusable is
// treated as absent.
type Cache interface {
	Get(ctx context.Context, c Carrier) *ClientAttribution
	Store(ctx context.Context, c Carrier, seed Seed) (*ClientAttribution, error)
	Clear(ctx context.Context, c Carrier)
}

var (
	ErrMalformed     = errors.New("malformed_attribution")
	ErrInvalidSeed   = errors.New("invalid_attribution_seed")
	ErrStoreDisabled = errors.New("attribution_store_disabled")
)
