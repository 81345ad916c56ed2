package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kolaffiliate/internal/affiliatelink"
	"github.com/smallbiznis/kolaffiliate/internal/attribution"
	"github.com/smallbiznis/kolaffiliate/internal/click"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/cloudmetrics"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	"github.com/smallbiznis/kolaffiliate/internal/dashboard"
	"github.com/smallbiznis/kolaffiliate/internal/kol"
	"github.com/smallbiznis/kolaffiliate/internal/ledger"
	"github.com/smallbiznis/kolaffiliate/internal/migration"
	"github.com/smallbiznis/kolaffiliate/internal/observability"
	"github.com/smallbiznis/kolaffiliate/internal/product"
	"github.com/smallbiznis/kolaffiliate/internal/realtime"
	"github.com/smallbiznis/kolaffiliate/internal/reconciliation"
	"github.com/smallbiznis/kolaffiliate/internal/scheduler"
	"github.com/smallbiznis/kolaffiliate/internal/seed"
	"github.com/smallbiznis/kolaffiliate/internal/server"
	"github.com/smallbiznis/kolaffiliate/internal/tier"
	"github.com/smallbiznis/kolaffiliate/pkg/db"
	"github.com/smallbiznis/kolaffiliate/pkg/redisclient"
	"go.uber.org/fx"
)

// Single-process deployment: HTTP, realtime push and the scheduler loop.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		redisclient.Module,
		clock.Module,
		migration.Module,
		seed.Module,

		// Functional Domains
		product.Module,
		kol.Module,
		affiliatelink.Module,
		click.Module,
		attribution.Module,
		ledger.Module,
		tier.Module,
		reconciliation.Module,
		dashboard.Module,
		realtime.Module,
		cloudmetrics.Module,

		scheduler.Module,
		scheduler.Run,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
