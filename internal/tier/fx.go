package tier

import (
	"github.com/smallbiznis/kolaffiliate/internal/tier/repository"
	"github.com/smallbiznis/kolaffiliate/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
