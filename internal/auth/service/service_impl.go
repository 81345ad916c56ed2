package service

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/kolaffiliate/internal/auth/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tokenLeeway = 30 * time.Second

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Clock  clock.Clock `optional:"true"`
}

type Service struct {
	log    *zap.Logger
	clock  clock.Clock
	secret []byte
}

func New(p Params) (domain.Verifier, error) {
	return NewVerifier(p.Config.AuthJWTSecret, p.Clock, p.Log)
}

func NewVerifier(secret string, clk clock.Clock, log *zap.Logger) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, domain.ErrMissingSecret
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:    log.Named("auth.service"),
		clock:  clk,
		secret: []byte(secret),
	}, nil
}

func (s *Service) Verify(raw string) (domain.Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Actor{}, domain.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(raw, &domain.Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, domain.ErrTokenExpired
		}
		s.log.Debug("token rejected", zap.Error(err))
		return domain.Actor{}, domain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*domain.Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, domain.ErrInvalidToken
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(claims.Subject), 10, 64)
	if err != nil || userID <= 0 {
		return domain.Actor{}, domain.ErrInvalidToken
	}
	return domain.Actor{
		UserID: userID,
		Role:   strings.ToLower(strings.TrimSpace(claims.Role)),
	}, nil
}

func (s *Service) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if actor.UserID <= 0 {
		return "", domain.ErrInvalidActor
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, domain.Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Subject(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.secret)
}
