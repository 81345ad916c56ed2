package kol

import (
	"github.com/smallbiznis/kolaffiliate/internal/kol/repository"
	"github.com/smallbiznis/kolaffiliate/internal/kol/service"
	"go.uber.org/fx"
)

var Module = fx.Module("kol.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
