package ocr

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/config"
	eventlogdomain "github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/subscriber"
	"github.com/smallbiznis/billflow/internal/objectstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ConsumerName = "ocr.worker"

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd billdomain.Command) (billservice.Result, error)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Events      eventlogdomain.EventLog
	Checkpoints eventlogdomain.CheckpointRepository
	Clock       clock.Clock
	Storage     objectstore.Storage
	Extractor   Extractor
	Dispatcher  Dispatcher
	Config      *config.EngineConfigHolder `optional:"true"`
}

// Worker answers OcrRequested events with ApplyOcrResult commands.
type Worker struct {
	log        *zap.Logger
	clock      clock.Clock
	storage    objectstore.Storage
	extractor  Extractor
	dispatcher Dispatcher
	config     *config.EngineConfigHolder
	sub        *subscriber.Subscriber

	mu       sync.Mutex
	attempts map[int64]int
}

func NewWorker(p Params) (*Worker, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	w := &Worker{
		log:        p.Log.Named("ocr.worker"),
		clock:      clk,
		storage:    p.Storage,
		extractor:  p.Extractor,
		dispatcher: p.Dispatcher,
		config:     p.Config,
		attempts:   make(map[int64]int),
	}

	engineCfg := p.Config.Get()
	sub, err := subscriber.New(p.DB, p.Log, p.Events, p.Checkpoints, clk, subscriber.Config{
		Name:         ConsumerName,
		PollInterval: engineCfg.OCR.PollInterval,
		GapTimeout:   engineCfg.Projection.GapTimeout,
		EventTypes:   []string{billdomain.EventOcrRequested},
	}, w.handle)
	if err != nil {
		return nil, err
	}
	w.sub = sub
	return w, nil
}

func (w *Worker) RunForever(ctx context.Context) { w.sub.RunForever(ctx) }

func (w *Worker) RunOnce(ctx context.Context) (int, error) { return w.sub.RunOnce(ctx) }

func (w *Worker) handle(ctx context.Context, rec eventlogdomain.Record) error {
	log := w.log.With(zap.String("bill_id", rec.AggregateID), zap.Int64("position", rec.GlobalPosition))

	ev, err := billdomain.DecodeEvent(rec.EventType, rec.Payload)
	if err != nil {
		log.Warn("ocr request skipped, undecodable event", zap.Error(err))
		return nil
	}
	req, ok := ev.(billdomain.OcrRequested)
	if !ok {
		return nil
	}
	if req.StoragePath == "" {
		log.Info("ocr request skipped, no stored document")
		return nil
	}

	started := w.clock.Now()
	extraction, err := w.extract(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.exhausted(rec.GlobalPosition) || errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, objectstore.ErrNotFound) {
			log.Error("ocr extraction abandoned", zap.Error(err))
			w.forget(rec.GlobalPosition)
			return nil
		}
		log.Warn("ocr extraction failed, will retry", zap.Error(err))
		return err
	}
	w.forget(rec.GlobalPosition)
	if reason := totalProblem(extraction.Total); reason != "" {
		log.Info("extracted total dropped", zap.String("total", extraction.Total.String()), zap.String("reason", reason))
		extraction.Total = nil
		extraction.Confidence = min(extraction.Confidence, 0.5)
	}

	_, err = w.dispatcher.Dispatch(ctx, billdomain.ApplyOcrResult{
		BillID:           req.BillID,
		ExtractedText:    extraction.Text,
		ExtractedTotal:   extraction.Total,
		ExtractedTitle:   extraction.Title,
		Confidence:       extraction.Confidence,
		ProcessingTimeMs: w.clock.Now().Sub(started).Milliseconds(),
	})
	switch {
	case err == nil:
		log.Info("ocr result applied", zap.Float64("confidence", extraction.Confidence))
		return nil
	case billdomain.IsValidationError(err), errors.Is(err, billdomain.ErrNotFound):
		log.Warn("ocr result rejected", zap.Error(err))
		return nil
	default:
		return err
	}
}

// totalProblem reports why a bill cannot carry total as its extracted
// amount. Such a figure is dropped and the text is still applied.
func totalProblem(total *decimal.Decimal) string {
	if total == nil {
		return ""
	}
	if total.IsNegative() {
		return "negative"
	}
	if err := billdomain.CheckMoney(*total); err != nil {
		return err.Error()
	}
	return ""
}

func (w *Worker) extract(ctx context.Context, req billdomain.OcrRequested) (Extraction, error) {
	data, err := w.storage.GetObject(ctx, req.StoragePath)
	if err != nil {
		return Extraction{}, err
	}
	return w.extractor.Extract(ctx, Document{
		BillID:      req.BillID,
		StoragePath: req.StoragePath,
		ContentType: req.ContentType,
		Data:        data,
	})
}

// exhausted counts a failed attempt and reports whether the budget is spent.
func (w *Worker) exhausted(position int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[position]++
	return w.attempts[position] >= w.config.Get().OCR.MaxAttempts
}

func (w *Worker) forget(position int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, position)
}
