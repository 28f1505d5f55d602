package eventlog

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/notifier"
	"github.com/smallbiznis/billflow/internal/eventlog/repository"
	"github.com/smallbiznis/billflow/internal/eventlog/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("eventlog",
	fx.Provide(
		repository.Provide,
		repository.ProvideCheckpoints,
		provideNotifier,
		service.New,
		func(l *service.Log) domain.EventLog { return l },
	),
)

type notifierParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Redis     *redis.Client `optional:"true"`
}

func provideNotifier(p notifierParams) domain.Notifier {
	if p.Redis == nil {
		return notifier.NewHub()
	}

	n := notifier.NewRedisNotifier(p.Redis, p.Config.Redis.Channel, p.Log)
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return n.Start(context.Background())
		},
		OnStop: func(context.Context) error {
			return n.Close()
		},
	})
	return n
}
