package ocr

import (
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/internal/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ocr",
	fx.Provide(func() Extractor { return NewTextExtractor() }),
	fx.Provide(func(d *billservice.Dispatcher) Dispatcher { return d }),
	fx.Provide(NewWorker),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, w *Worker, log *zap.Logger) {
		worker.Start(lc, log, ConsumerName, cfg.Workers.OCREnabled, w.RunForever)
	}),
)
