package billquery

import (
	"github.com/smallbiznis/billflow/internal/billquery/repository"
	"github.com/smallbiznis/billflow/internal/billquery/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billquery",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
