package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/cloudmetrics"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"github.com/smallbiznis/kolaffiliate/internal/kol"
	"github.com/smallbiznis/kolaffiliate/internal/ledger"
	"github.com/smallbiznis/kolaffiliate/internal/observability"
	"github.com/smallbiznis/kolaffiliate/internal/product"
	"github.com/smallbiznis/kolaffiliate/internal/scheduler"
	"github.com/smallbiznis/kolaffiliate/internal/tier"
	"github.com/smallbiznis/kolaffiliate/pkg/db"
	"github.com/smallbiznis/kolaffiliate/pkg/redisclient"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisclient.Module,
		clock.Module,

		// Domain services required by the jobs
		product.Module,
		kol.Module,
		affiliatelink.Module,
		ledger.Module,
		tier.Module,
		cloudmetrics.Module,

		// No server module
		scheduler.Module,
		scheduler.Run,
	)
	app.Run()
}

// The scheduler mints ids on its own node so they never collide with the API.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
