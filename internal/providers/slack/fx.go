package slack

import (
	"github.com/smallbiznis/billflow/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.SlackWebhookURL == "" {
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.SlackWebhookURL, nil)
}
