package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/billflow/internal/bill/domain"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/config"
	eventlogdomain "github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/objectstore"
	obscontext "github.com/smallbiznis/billflow/internal/observability/context"
	"github.com/smallbiznis/billflow/internal/observability/logger"
	"github.com/smallbiznis/billflow/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Events  eventlogdomain.EventLog
	Clock   clock.Clock
	Storage objectstore.Storage        `optional:"true"`
	Metrics *metrics.Metrics           `optional:"true"`
	Config  *config.EngineConfigHolder `optional:"true"`
}

// Result reports the outcome of a dispatched command. Applied is false when
// the command was a repeat of one already recorded.
type Result struct {
	BillID  string
	Version int64
	Events  []domain.Event
	Applied bool
}

// Dispatcher runs commands against bills. Concurrent writers to one bill are
// serialised by the event log's version check; losers reload and retry.
type Dispatcher struct {
	log     *zap.Logger
	events  eventlogdomain.EventLog
	clock   clock.Clock
	storage objectstore.Storage
	metrics *metrics.Metrics
	config  *config.EngineConfigHolder
}

func New(p Params) *Dispatcher {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Dispatcher{
		log:     p.Log.Named("bill.dispatcher"),
		events:  p.Events,
		clock:   clk,
		storage: p.Storage,
		metrics: p.Metrics,
		config:  p.Config,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, cmd domain.Command) (Result, error) {
	if cmd == nil {
		return Result{}, domain.ErrUnknownCommand
	}
	start := time.Now()
	if create, ok := cmd.(domain.CreateBill); ok && create.ID == "" {
		create.ID = uuid.NewString()
		cmd = create
	}

	ctx = obscontext.WithBillID(obscontext.WithCommand(ctx, cmd.CommandName()), cmd.TargetID())
	log := logger.WithContext(ctx, d.log)

	res, err := d.dispatch(ctx, log, cmd)
	d.metrics.RecordCommand(ctx, cmd.CommandName(), outcome(err), time.Since(start))
	if err != nil {
		if domain.IsValidationError(err) || errors.Is(err, domain.ErrNotFound) {
			log.Debug("command rejected", zap.Error(err))
		} else {
			log.Warn("command failed", zap.Error(err))
		}
		return Result{}, err
	}
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, log *zap.Logger, cmd domain.Command) (Result, error) {
	cfg := d.config.Get().Dispatcher
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		res, err := d.attempt(ctx, cmd)
		if !errors.Is(err, eventlogdomain.ErrConcurrencyConflict) {
			return res, err
		}

		d.metrics.RecordConflictRetry(ctx, cmd.CommandName())
		if attempt >= attempts {
			return Result{}, fmt.Errorf("%w: %s gave up after %d attempts", domain.ErrConflict, cmd.TargetID(), attempt)
		}
		log.Debug("append conflict, retrying", zap.Int("attempt", attempt))

		if err := sleep(ctx, jitter(cfg.RetryBackoff, attempt)); err != nil {
			return Result{}, err
		}
	}
}

// attempt is one load, decide, append cycle.
func (d *Dispatcher) attempt(ctx context.Context, cmd domain.Command) (Result, error) {
	state, err := d.Load(ctx, cmd.TargetID())
	if err != nil {
		return Result{}, err
	}

	events, err := domain.Decide(state, cmd, d.clock.Now())
	if err != nil {
		return Result{}, err
	}
	if len(events) == 0 {
		return Result{BillID: state.ID, Version: state.Version}, nil
	}

	pending := make([]eventlogdomain.NewEvent, 0, len(events))
	for _, ev := range events {
		typ, payload, err := domain.EncodeEvent(ev)
		if err != nil {
			return Result{}, err
		}
		pending = append(pending, eventlogdomain.NewEvent{Type: typ, Payload: payload})
	}

	appended, err := d.events.Append(ctx, cmd.TargetID(), state.Version, pending)
	if errors.Is(err, eventlogdomain.ErrInvalidAggregateID) {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidBillID, err)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		BillID:  cmd.TargetID(),
		Version: appended.Version,
		Events:  events,
		Applied: true,
	}, nil
}

// Load rebuilds a bill from its stream. A bill without events is returned
// as the zero value.
func (d *Dispatcher) Load(ctx context.Context, billID string) (domain.Bill, error) {
	records, err := d.events.ReadStream(ctx, billID)
	if err != nil {
		if errors.Is(err, eventlogdomain.ErrInvalidAggregateID) {
			return domain.Bill{}, domain.ErrInvalidBillID
		}
		return domain.Bill{}, err
	}
	envs, err := Envelopes(records)
	if err != nil {
		return domain.Bill{}, err
	}
	return domain.Replay(envs)
}

// Envelopes decodes stored records in stream order.
func Envelopes(records []eventlogdomain.Record) ([]domain.Envelope, error) {
	envs := make([]domain.Envelope, 0, len(records))
	for _, rec := range records {
		ev, err := domain.DecodeEvent(rec.EventType, rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s seq %d: %v", domain.ErrCorruptStream, rec.AggregateID, rec.Sequence, err)
		}
		envs = append(envs, domain.Envelope{
			Sequence:   rec.Sequence,
			RecordedAt: rec.RecordedAt,
			Event:      ev,
		})
	}
	return envs, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsValidationError(err):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func jitter(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base * time.Duration(attempt)
	return d/2 + rand.N(d/2+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
