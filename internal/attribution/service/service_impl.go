package service

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	"github.com/smallbiznis/kolaffiliate/internal/attribution/store"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Clock  clock.Clock
	Config config.Config
	Redis  *redis.Client `optional:"true"`
}

// Cache keeps the attribution in a primary store and, when configured, a
// fallback store. Either copy alone is enough to recover the other.
type Cache struct {
	log      *zap.Logger
	clock    clock.Clock
	primary  domain.Store
	fallback domain.Store
}

func New(p Params) domain.Cache {
	primary := store.NewCookieStore(p.Config.AuthCookieSecure, p.Clock)
	var fallback domain.Store
	if rs := store.NewRedisStore(p.Redis, p.Config.AuthCookieSecure, p.Clock); rs != nil {
		fallback = rs
	}
	return NewCache(p.Log, p.Clock, primary, fallback)
}

func NewCache(log *zap.Logger, clk clock.Clock, primary, fallback domain.Store) *Cache {
	return &Cache{
		log:      log.Named("attribution.cache"),
		clock:    clk,
		primary:  primary,
		fallback: fallback,
	}
}

func (s *Cache) Get(ctx context.Context, c domain.Carrier) *domain.ClientAttribution {
	now := s.clock.Now()
	primary := s.load(ctx, c, s.primary, now)
	fallback := s.load(ctx, c, s.fallback, now)

	switch {
	case primary != nil:
		if s.fallback != nil && !same(primary, fallback) {
			s.save(ctx, c, s.fallback, *primary, "repair")
		}
		return primary
	case fallback != nil:
		s.save(ctx, c, s.primary, *fallback, "repair")
		return fallback
	default:
		return nil
	}
}

func (s *Cache) Store(ctx context.Context, c domain.Carrier, seed domain.Seed) (*domain.ClientAttribution, error) {
	if seed.KolID <= 0 || seed.AffiliateID <= 0 {
		return nil, domain.ErrInvalidSeed
	}
	a := domain.New(seed, s.clock.Now())

	primaryErr := s.primary.Save(ctx, c, a)
	var fallbackErr error
	if s.fallback != nil {
		fallbackErr = s.fallback.Save(ctx, c, a)
	}
	switch {
	case primaryErr != nil && (s.fallback == nil || fallbackErr != nil):
		return nil, errors.Join(primaryErr, fallbackErr)
	case primaryErr != nil:
		s.log.Warn("primary attribution store failed", zap.Error(primaryErr))
	case fallbackErr != nil:
		s.log.Warn("fallback attribution store failed", zap.Error(fallbackErr))
	}

	s.log.Debug("attribution stored",
		zap.Int64("kol_id", seed.KolID),
		zap.Int64("link_id", seed.AffiliateID),
		zap.String("type", string(a.AttributionType)),
	)
	return &a, nil
}

func (s *Cache) Clear(ctx context.Context, c domain.Carrier) {
	s.delete(ctx, c, s.primary, "clear")
	s.delete(ctx, c, s.fallback, "clear")
}

// load returns a usable record from st or nil. Malformed, incomplete and
// expired records are removed on the way.
func (s *Cache) load(ctx context.Context, c domain.Carrier, st domain.Store, now time.Time) *domain.ClientAttribution {
	if st == nil {
		return nil
	}
	a, err := st.Load(ctx, c)
	if err != nil {
		if errors.Is(err, domain.ErrMalformed) {
			s.delete(ctx, c, st, "malformed")
		} else {
			s.log.Warn("attribution load failed", zap.String("store", st.Name()), zap.Error(err))
		}
		return nil
	}
	if a == nil {
		return nil
	}
	if !a.Valid() {
		s.delete(ctx, c, st, "invalid")
		return nil
	}
	if a.Expired(now) {
		s.delete(ctx, c, st, "expired")
		return nil
	}
	return a
}

func (s *Cache) save(ctx context.Context, c domain.Carrier, st domain.Store, a domain.ClientAttribution, reason string) {
	if err := st.Save(ctx, c, a); err != nil {
		s.log.Warn("attribution save failed", zap.String("store", st.Name()), zap.String("reason", reason), zap.Error(err))
		return
	}
	s.log.Debug("attribution copied", zap.String("store", st.Name()), zap.String("reason", reason))
}

func (s *Cache) delete(ctx context.Context, c domain.Carrier, st domain.Store, reason string) {
	if st == nil {
		return
	}
	if err := st.Delete(ctx, c); err != nil {
		s.log.Warn("attribution delete failed", zap.String("store", st.Name()), zap.String("reason", reason), zap.Error(err))
		return
	}
	s.log.Debug("attribution removed", zap.String("store", st.Name()), zap.String("reason", reason))
}

func same(a, b *domain.ClientAttribution) bool {
	if a == nil || b == nil {
		return false
	}
	return a.KolID == b.KolID && a.AffiliateID == b.AffiliateID && a.Timestamp.Equal(b.Timestamp)
}
