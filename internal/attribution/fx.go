package attribution

import (
	"github.com/smallbiznis/kolaffiliate/internal/attribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("attribution.cache",
	fx.Provide(service.New),
)
