package realtime

import (
	"context"
	"time"

	"github.com/smallbiznis/kolaffiliate/internal/config"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	"github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultRefreshInterval = 30 * time.Second
	computeTimeout         = 10 * time.Second
)

type BroadcasterParams struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	Stats      domain.StatsService
	Hub        *Hub
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Broadcaster pushes stats to hub subscribers on events and on a fixed
// refresh cadence.
type Broadcaster struct {
	log        *zap.Logger
	stats      domain.StatsService
	hub        *Hub
	obsMetrics *obsmetrics.Metrics
	refresh    time.Duration
	now        func() time.Time
	runAsync   func(func())
}

func NewBroadcaster(p BroadcasterParams) *Broadcaster {
	refresh := p.Config.Realtime.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	return &Broadcaster{
		log:        p.Log.Named("realtime.broadcaster"),
		stats:      p.Stats,
		hub:        p.Hub,
		obsMetrics: p.ObsMetrics,
		refresh:    refresh,
		now:        time.Now,
		runAsync:   func(fn func()) { go fn() },
	}
}

func (b *Broadcaster) Hub() *Hub {
	return b.hub
}

// NotifyKol schedules a stats push for kolID. It returns immediately and
// does nothing when nobody watches that KOL.
func (b *Broadcaster) NotifyKol(kolID int64, event string) {
	if b == nil || !b.hub.HasSubscribers(kolID) {
		return
	}
	b.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), computeTimeout)
		defer cancel()
		delivered := b.PushKol(ctx, kolID)
		b.log.Debug("stats pushed",
			zap.Int64("kol_id", kolID),
			zap.String("event", event),
			zap.Int("delivered", delivered),
		)
	})
}

// PushKol publishes a statsUpdate, or statsError when stats cannot be
// computed, to subscribers of kolID.
func (b *Broadcaster) PushKol(ctx context.Context, kolID int64) int {
	msg := b.Snapshot(ctx, kolID)
	delivered := b.hub.Publish(kolID, msg)
	b.obsMetrics.RecordRealtimePush(ctx, msg.Type, delivered)
	return delivered
}

// Snapshot computes the message a new subscriber of kolID receives first.
func (b *Broadcaster) Snapshot(ctx context.Context, kolID int64) domain.Message {
	id := domain.KolID(kolID)
	stats, err := b.stats.Compute(ctx, kolID)
	if err != nil {
		b.log.Warn("stats computation failed", zap.Int64("kol_id", kolID), zap.Error(err))
		return domain.Message{
			Type:      domain.MessageStatsError,
			KolID:     &id,
			Error:     domain.ErrStatsUnavailable.Error(),
			Timestamp: b.now().UTC(),
		}
	}
	return domain.Message{
		Type:      domain.MessageStatsUpdate,
		KolID:     &id,
		Stats:     stats,
		Timestamp: stats.Timestamp,
	}
}

// Refresh sends globalStatsUpdate to every subscribed KOL. Global stats are
// computed once per pass.
func (b *Broadcaster) Refresh(ctx context.Context) int {
	kols := b.hub.SubscribedKols()
	if len(kols) == 0 {
		return 0
	}
	global, err := b.stats.Compute(ctx, 0)
	if err != nil {
		b.log.Warn("global stats computation failed", zap.Error(err))
		return 0
	}

	delivered := 0
	for _, kolID := range kols {
		if ctx.Err() != nil {
			break
		}
		kolStats, err := b.stats.Compute(ctx, kolID)
		if err != nil {
			b.log.Warn("stats computation failed", zap.Int64("kol_id", kolID), zap.Error(err))
			continue
		}
		id := domain.KolID(kolID)
		delivered += b.hub.Publish(kolID, domain.Message{
			Type:        domain.MessageGlobalStatsUpdate,
			KolID:       &id,
			GlobalStats: global,
			KolStats:    kolStats,
			Timestamp:   global.Timestamp,
		})
	}
	b.obsMetrics.RecordRealtimePush(ctx, domain.MessageGlobalStatsUpdate, delivered)
	return delivered
}

func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if b.hub.ConnectionCount() == 0 {
				continue
			}
			passCtx, cancel := context.WithTimeout(ctx, b.refresh)
			b.Refresh(passCtx)
			cancel()
		}
	}
}
