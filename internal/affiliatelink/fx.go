package affiliatelink

import (
	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink/repository"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink/service"
	"github.com/smallbiznis/kolaffiliate/internal/cache"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("affiliatelink.service",
	fx.Provide(repository.Provide),
	fx.Provide(newLinkCache),
	fx.Provide(service.New),
)

func newLinkCache(lc fx.Lifecycle, cfg config.Config) (cache.Cache[string, domain.Link], error) {
	c, err := cache.NewRistretto[string, domain.Link](cache.Config{MaxItems: cfg.Affiliate.LinkCacheSize})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(c.Close))
	return c, nil
}
