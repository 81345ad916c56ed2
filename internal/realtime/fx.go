package realtime

import (
	"context"

	"github.com/smallbiznis/kolaffiliate/internal/realtime/domain"
	"github.com/smallbiznis/kolaffiliate/internal/realtime/service"
	"go.uber.org/fx"
)

var Module = fx.Module("realtime",
	fx.Provide(service.New),
	fx.Provide(NewHub),
	fx.Provide(NewBroadcaster),
	fx.Provide(func(b *Broadcaster) domain.Notifier { return b }),
	fx.Invoke(registerRefresh),
)

func registerRefresh(lc fx.Lifecycle, b *Broadcaster) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				b.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
