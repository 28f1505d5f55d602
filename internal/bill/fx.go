package bill

import (
	"github.com/smallbiznis/billflow/internal/bill/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bill",
	fx.Provide(service.New),
)
