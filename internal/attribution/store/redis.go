package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
)

const keyAttribution = "affiliate:attribution:%s"

// RedisStore keys the attribution by an anonymous session id carried in the
// affiliate_session cookie. Entries expire with the attribution itself.
type RedisStore struct {
	client *redis.Client
	secure bool
	clock  clock.Clock
}

func NewRedisStore(client *redis.Client, secure bool, clk clock.Clock) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client, secure: secure, clock: clk}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Load(ctx context.Context, c domain.Carrier) (*domain.ClientAttribution, error) {
	sessionID := s.sessionID(c, false)
	if sessionID == "" {
		return nil, nil
	}
	payload, err := s.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(payload)
}

func (s *RedisStore) Save(ctx context.Context, c domain.Carrier, a domain.ClientAttribution) error {
	ttl := a.Remaining(s.clock.Now())
	if ttl <= 0 {
		return s.Delete(ctx, c)
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(s.sessionID(c, true)), payload, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, c domain.Carrier) error {
	sessionID := s.sessionID(c, false)
	if sessionID == "" {
		return nil
	}
	return s.client.Del(ctx, key(sessionID)).Err()
}

// sessionID returns the visitor's session id, minting one when create is set
// and the cookie is missing or not a ULID.
func (s *RedisStore) sessionID(c domain.Carrier, create bool) string {
	if raw, err := c.Cookie(domain.SessionCookieName); err == nil {
		if id, err := ulid.ParseStrict(raw); err == nil {
			return id.String()
		}
	}
	if !create {
		return ""
	}
	id := ulid.Make().String()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(domain.SessionCookieName, id, int(domain.Lifetime/time.Second), "/", "", s.secure, true)
	return id
}

func key(sessionID string) string {
	return fmt.Sprintf(keyAttribution, sessionID)
}
