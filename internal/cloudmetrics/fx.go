package cloudmetrics

import (
	"github.com/smallbiznis/kolaffiliate/internal/scheduler"
	"go.uber.org/fx"
)

var Module = fx.Module("cloud.metrics",
	fx.Provide(NewPusher),
	fx.Provide(New),
	fx.Provide(provideSchedulerPusher),
)

// provideSchedulerPusher keeps a disabled exporter out of the scheduler:
// a nil *CloudMetrics must not become a non-nil interface.
func provideSchedulerPusher(c *CloudMetrics) scheduler.MetricsPusher {
	if c == nil {
		return nil
	}
	return c
}
