package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
)

// CookieStore keeps the attribution in the affiliate_attribution cookie as
// base64url JSON.
type CookieStore struct {
	secure bool
	clock  clock.Clock
}

func NewCookieStore(secure bool, clk clock.Clock) *CookieStore {
	return &CookieStore{secure: secure, clock: clk}
}

func (s *CookieStore) Name() string { return "cookie" }

func (s *CookieStore) Load(ctx context.Context, c domain.Carrier) (*domain.ClientAttribution, error) {
	raw, err := c.Cookie(domain.CookieName)
	if err != nil || raw == "" {
		return nil, nil
	}
	payload, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, domain.ErrMalformed
	}
	return decode(payload)
}

func (s *CookieStore) Save(ctx context.Context, c domain.Carrier, a domain.ClientAttribution) error {
	maxAge := int(a.Remaining(s.clock.Now()) / time.Second)
	if maxAge <= 0 {
		return s.Delete(ctx, c)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(domain.CookieName, base64.RawURLEncoding.EncodeToString(payload), maxAge, "/", "", s.secure, true)
	return nil
}

func (s *CookieStore) Delete(ctx context.Context, c domain.Carrier) error {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(domain.CookieName, "", -1, "/", "", s.secure, true)
	return nil
}

func decode(payload []byte) (*domain.ClientAttribution, error) {
	var a domain.ClientAttribution
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, domain.ErrMalformed
	}
	a.Normalize()
	return &a, nil
}
