package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kolaffiliate/internal/cache"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	keyClickIP = "affiliate:click:ip:%s"

	localLimiterTTL      = 10 * time.Minute
	localLimiterMaxItems = 100_000
)

type ClickLimiterParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

// ClickLimiter throttles click recording per client IP. It prefers the
// shared redis bucket and falls back to per-process limiters when redis is
// disabled or failing.
type ClickLimiter struct {
	enabled bool
	log     *zap.Logger
	bucket  *TokenBucket
	local   cache.Cache[string, *rate.Limiter]
	rate    float64
	burst   int
}

func NewClickLimiter(p ClickLimiterParams) (*ClickLimiter, error) {
	cfg := p.Config.RateLimit
	l := &ClickLimiter{
		enabled: cfg.ClickEnabled,
		log:     p.Log.Named("ratelimit.click"),
		rate:    cfg.ClickRate,
		burst:   cfg.ClickBurst,
	}
	if !l.enabled {
		return l, nil
	}
	if l.rate <= 0 || l.burst <= 0 {
		return nil, fmt.Errorf("click rate limit must be positive: rate=%v burst=%d", l.rate, l.burst)
	}
	local, err := cache.NewRistretto[string, *rate.Limiter](cache.Config{MaxItems: localLimiterMaxItems})
	if err != nil {
		return nil, err
	}
	l.local = local
	l.bucket = NewTokenBucket(p.Redis)
	return l, nil
}

func (l *ClickLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow reports whether a click from ip may be recorded and, when it may
// not, how long the client should wait.
func (l *ClickLimiter) Allow(ctx context.Context, ip string) (bool, time.Duration) {
	if !l.Enabled() {
		return true, 0
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyClickIP, ip), l.rate, l.burst)
		if err == nil {
			return res.Allowed, res.RetryAfter
		}
		l.log.Warn("redis click limiter failed; using local limiter", zap.Error(err))
	}
	return l.allowLocal(ip)
}

func (l *ClickLimiter) allowLocal(ip string) (bool, time.Duration) {
	limiter, ok := l.local.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.local.Set(ip, limiter, localLimiterTTL)
	}
	r := limiter.Reserve()
	if !r.OK() {
		return false, 0
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}
