package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/config"
	eventlogdomain "github.com/smallbiznis/billflow/internal/eventlog/domain"
	eventlogservice "github.com/smallbiznis/billflow/internal/eventlog/service"
	"github.com/smallbiznis/billflow/internal/lock"
	"github.com/smallbiznis/billflow/internal/observability/metrics"
	"github.com/smallbiznis/billflow/internal/projection/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaderKey = "billflow:projection:leader"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Events      eventlogdomain.EventLog
	Checkpoints eventlogdomain.CheckpointRepository
	Repo        domain.Repository
	GenID       *snowflake.Node
	AppConfig   config.Config              `optional:"true"`
	Config      *config.EngineConfigHolder `optional:"true"`
	Locker      *lock.Locker               `optional:"true"`
	Metrics     *metrics.Metrics           `optional:"true"`
}

// Engine is the single ordered consumer that maintains bill_views and
// bill_files. Each event is applied and checkpointed in one transaction.
type Engine struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	events      eventlogdomain.EventLog
	checkpoints eventlogdomain.CheckpointRepository
	repo        domain.Repository
	genID       *snowflake.Node
	config      *config.EngineConfigHolder
	locker      *lock.Locker
	leaderTTL   time.Duration
	metrics     *metrics.Metrics

	mu      sync.Mutex
	gaps    *eventlogservice.GapGuard
	leading atomic.Bool
}

func New(p Params) *Engine {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	e := &Engine{
		db:          p.DB,
		log:         p.Log.Named("projection.engine"),
		clock:       clk,
		events:      p.Events,
		checkpoints: p.Checkpoints,
		repo:        p.Repo,
		genID:       p.GenID,
		config:      p.Config,
		locker:      p.Locker,
		leaderTTL:   p.AppConfig.Workers.LeaderLockTTL,
		metrics:     p.Metrics,
	}
	e.gaps = eventlogservice.NewGapGuard(e.config.Get().Projection.GapTimeout, clk)
	return e
}

// RunForever consumes the log until ctx ends. With a lock configured only
// the replica holding the leader lease consumes.
func (e *Engine) RunForever(ctx context.Context) {
	if e.locker == nil {
		e.consume(ctx)
		return
	}
	e.locker.Leader(ctx, e.log, leaderKey, e.leaderTTL, e.consume)
}

func (e *Engine) consume(ctx context.Context) {
	e.leading.Store(true)
	defer e.leading.Store(false)

	for {
		cfg := e.config.Get().Projection
		processed, err := e.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.log.Error("projection batch failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
		if err == nil && processed >= cfg.BatchSize {
			continue
		}
		e.events.Wait(ctx, cfg.PollInterval)
		if ctx.Err() != nil {
			return
		}
	}
}

// RunOnce applies the next batch after the checkpoint. It stops at the
// first storage failure; events before it stay applied.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runBatch(ctx)
}

func (e *Engine) runBatch(ctx context.Context) (int, error) {
	position, err := e.checkpoints.Get(ctx, e.db, domain.ConsumerName)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}

	records, err := e.events.ReadAll(ctx, position, e.config.Get().Projection.BatchSize)
	if err != nil {
		return 0, err
	}
	ready := e.gaps.Ready(position, records)
	if len(ready) < len(records) {
		e.log.Debug("holding at gap in global positions",
			zap.Int64("after", position),
			zap.Int("ready", len(ready)),
		)
	}

	from := position
	for i, rec := range ready {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		err := e.applyOne(ctx, from, rec)
		if errors.Is(err, eventlogdomain.ErrCheckpointMoved) {
			// Another writer applied this event or reset the read models.
			e.log.Info("checkpoint moved, reloading",
				zap.Int64("expected", from),
				zap.Int64("position", rec.GlobalPosition),
			)
			e.gaps.Reset()
			return i, nil
		}
		if err != nil {
			return i, err
		}
		from = rec.GlobalPosition
	}
	return len(ready), nil
}

// applyOne advances the checkpoint from one position to rec's and applies
// rec in the same transaction. The checkpoint row is written first, so two
// writers on the same log serialize on it and the one that finds it moved
// rolls back. The handler runs in a savepoint so a rejected event leaves no
// partial writes.
func (e *Engine) applyOne(ctx context.Context, from int64, rec eventlogdomain.Record) error {
	var skipped *domain.HandlerError

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.checkpoints.Advance(ctx, tx, domain.ConsumerName, from, rec.GlobalPosition, e.clock.Now()); err != nil {
			return err
		}
		herr := tx.Transaction(func(sp *gorm.DB) error {
			return e.handle(ctx, sp, rec)
		})
		if herr != nil && !errors.As(herr, &skipped) {
			return herr
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply %s at %d: %w", rec.EventType, rec.GlobalPosition, err)
	}

	if skipped != nil {
		e.log.Warn("projection skipped event",
			zap.String("bill_id", rec.AggregateID),
			zap.Int64("sequence", rec.Sequence),
			zap.Int64("position", rec.GlobalPosition),
			zap.String("event_type", rec.EventType),
			zap.String("reason", skipped.Reason),
			zap.Error(skipped.Err),
		)
		e.metrics.RecordProjectionSkipped(ctx, domain.ConsumerName, rec.EventType, skipped.Reason)
		return nil
	}
	e.metrics.RecordProjectionApplied(ctx, domain.ConsumerName, rec.EventType)
	return nil
}

// Rebuild clears the read models and replays the log up to the head seen
// when it started. It may run in any process: a consumer elsewhere that is
// mid-batch finds the checkpoint moved and resumes from the reset position.
func (e *Engine) Rebuild(ctx context.Context) (domain.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	head, err := e.events.Head(ctx)
	if err != nil {
		return domain.Status{}, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.checkpoints.Save(ctx, tx, domain.ConsumerName, 0, e.clock.Now()); err != nil {
			return err
		}
		return e.repo.Truncate(ctx, tx)
	})
	if err != nil {
		return domain.Status{}, fmt.Errorf("reset read models: %w", err)
	}
	e.gaps.Reset()
	e.log.Info("projection rebuild started", zap.Int64("head", head))

	for {
		position, err := e.checkpoints.Get(ctx, e.db, domain.ConsumerName)
		if err != nil {
			return domain.Status{}, err
		}
		if position >= head {
			break
		}
		processed, err := e.runBatch(ctx)
		if err != nil {
			return domain.Status{}, err
		}
		if processed == 0 {
			e.events.Wait(ctx, e.config.Get().Projection.PollInterval)
			if err := ctx.Err(); err != nil {
				return domain.Status{}, err
			}
		}
	}

	e.log.Info("projection rebuild finished", zap.Int64("head", head))
	return e.status(ctx)
}

func (e *Engine) Status(ctx context.Context) (domain.Status, error) {
	return e.status(ctx)
}

func (e *Engine) status(ctx context.Context) (domain.Status, error) {
	position, err := e.checkpoints.Get(ctx, e.db, domain.ConsumerName)
	if err != nil {
		return domain.Status{}, err
	}
	head, err := e.events.Head(ctx)
	if err != nil {
		return domain.Status{}, err
	}
	return domain.Status{
		Consumer:   domain.ConsumerName,
		Checkpoint: position,
		Head:       head,
		Lag:        max(head-position, 0),
		Leader:     e.locker == nil || e.leading.Load(),
		CheckedAt:  e.clock.Now(),
	}, nil
}
