package notification

import (
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/internal/providers"
	"github.com/smallbiznis/billflow/internal/providers/email"
	"github.com/smallbiznis/billflow/internal/providers/slack"
	"github.com/smallbiznis/billflow/internal/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	providers.Module,
	fx.Provide(NewSink),
	fx.Provide(func(d *billservice.Dispatcher) BillLoader { return d }),
	fx.Provide(NewConsumer),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, c *Consumer, log *zap.Logger) {
		worker.Start(lc, log, ConsumerName, cfg.Workers.NotificationEnabled, c.RunForever)
	}),
)

func NewSink(cfg config.Config, mail email.Provider, chat slack.Provider) Sink {
	return FanOut{
		NewEmailSink(mail, cfg.SMTP.Recipients),
		NewSlackSink(chat),
	}
}
