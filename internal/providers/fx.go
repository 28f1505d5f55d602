package providers

import (
	"github.com/smallbiznis/billflow/internal/providers/email"
	"github.com/smallbiznis/billflow/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
)
