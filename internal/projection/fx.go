package projection

import (
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/internal/projection/repository"
	"github.com/smallbiznis/billflow/internal/projection/service"
	"github.com/smallbiznis/billflow/internal/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("projection",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// WorkerModule runs the engine in the background.
var WorkerModule = fx.Module("projection.worker",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, engine *service.Engine, log *zap.Logger) {
		worker.Start(lc, log, "projection", cfg.Workers.ProjectionEnabled, engine.RunForever)
	}),
)
