// Package redisclient provides the shared redis connection. When redis is
// disabled the provided client is nil and consumers fall back to their
// process-local behavior.
package redisclient

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	log = log.Named("redis")
	if !cfg.Redis.Enabled || strings.TrimSpace(cfg.Redis.Addr) == "" {
		log.Warn("redis disabled; attribution fallback store and distributed locks are off")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := client.Ping(pingCtx).Err(); err != nil {
				// degrade instead of refusing to boot; commands fail until redis is back
				log.Error("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}
