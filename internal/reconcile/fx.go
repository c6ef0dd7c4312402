package reconcile

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(
		NewPoller,
		NewSweeper,
	),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, poller *Poller, sweeper *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sweeper.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					poller.Stop()
					return nil
				},
			})

			return nil
		},
	})
}
