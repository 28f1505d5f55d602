package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billflow/internal/config"
	"go.uber.org/fx"
)

// NewClient returns nil when no Redis address is configured; callers fall
// back to in-process coordination.
func NewClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}
	return client
}

var Module = fx.Module("lock",
	fx.Provide(NewClient, NewLocker),
)
