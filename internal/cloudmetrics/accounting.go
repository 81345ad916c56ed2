package cloudmetrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	linkdomain "github.com/smallbiznis/kolaffiliate/internal/affiliatelink/domain"
	"github.com/smallbiznis/kolaffiliate/internal/clock"
	"github.com/smallbiznis/kolaffiliate/internal/config"
	ledgerdomain "github.com/smallbiznis/kolaffiliate/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var trackedStatuses = []ledgerdomain.Status{
	ledgerdomain.StatusPending,
	ledgerdomain.StatusCompleted,
	ledgerdomain.StatusCancelled,
}

type Params struct {
	fx.In

	Config   config.Config
	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Ledger   ledgerdomain.Service
	LinkRepo linkdomain.Repository
	Pusher   Pusher `optional:"true"`
}

// CloudMetrics snapshots affiliate accounting into its own registry and
// hands it to a Pusher. The scheduler drives it; nothing here ticks.
type CloudMetrics struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	ledger   ledgerdomain.Service
	linkRepo linkdomain.Repository
	pusher   Pusher

	registry         *prometheus.Registry
	commissionAmount *prometheus.GaugeVec
	commissionCount  *prometheus.GaugeVec
	activeLinks      prometheus.Gauge
}

func New(p Params) *CloudMetrics {
	if p.Pusher == nil {
		return nil
	}
	return newCloudMetrics(p, prometheus.NewRegistry())
}

func newCloudMetrics(p Params, registry *prometheus.Registry) *CloudMetrics {
	constLabels := prometheus.Labels{
		"service": p.Config.AppName,
		"env":     p.Config.Environment,
	}
	c := &CloudMetrics{
		db:       p.DB,
		log:      p.Log.Named("cloudmetrics"),
		clock:    p.Clock,
		ledger:   p.Ledger,
		linkRepo: p.LinkRepo,
		pusher:   p.Pusher,
		registry: registry,
		commissionAmount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "kolaffiliate_ledger_commission_amount",
			Help:        "Sum of commission per ledger status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		commissionCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "kolaffiliate_ledger_commission_rows",
			Help:        "Ledger rows per status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		activeLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kolaffiliate_active_links",
			Help:        "Affiliate links that have not expired.",
			ConstLabels: constLabels,
		}),
	}
	registry.MustRegister(c.commissionAmount, c.commissionCount, c.activeLinks)
	return c
}

// Refresh reloads every gauge from the database.
func (c *CloudMetrics) Refresh(ctx context.Context) error {
	if c == nil {
		return nil
	}
	totals, err := c.ledger.TotalsByStatus(ctx, 0)
	if err != nil {
		return fmt.Errorf("ledger totals: %w", err)
	}
	for _, status := range trackedStatuses {
		t := totals[status]
		c.commissionAmount.WithLabelValues(string(status)).Set(t.Amount)
		c.commissionCount.WithLabelValues(string(status)).Set(float64(t.Count))
	}

	active, err := c.linkRepo.CountActive(ctx, c.db, 0, c.clock.Now())
	if err != nil {
		return fmt.Errorf("active links: %w", err)
	}
	c.activeLinks.Set(float64(active))
	return nil
}

// Push refreshes the gauges and ships them.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.pusher == nil {
		return errors.New("cloud metrics pusher not configured")
	}
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if err := c.pusher.Push(ctx, c.registry); err != nil {
		c.log.Warn("cloud metrics push failed", zap.Error(err))
		return err
	}
	return nil
}
