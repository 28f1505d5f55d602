package worker

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Start runs fn in the background for the lifetime of the app. Stop cancels
// fn's context and waits for it to return.
func Start(lc fx.Lifecycle, log *zap.Logger, name string, enabled bool, fn func(ctx context.Context)) {
	if !enabled {
		log.Info("worker disabled", zap.String("worker", name))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("worker starting", zap.String("worker", name))
			go func() {
				defer close(done)
				fn(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				log.Warn("worker did not stop in time", zap.String("worker", name))
			}
			return nil
		},
	})
}
