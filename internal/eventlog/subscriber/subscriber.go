package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler processes one record. Returning an error stops the batch before
// the record; it is delivered again on the next run. Handlers that want to
// drop a record log it and return nil.
type Handler func(ctx context.Context, rec domain.Record) error

type Config struct {
	Name         string
	BatchSize    int
	PollInterval time.Duration
	GapTimeout   time.Duration
	// EventTypes narrows delivery; empty means every event.
	EventTypes []string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.GapTimeout <= 0 {
		c.GapTimeout = 5 * time.Second
	}
	return c
}

// Subscriber is an at-least-once, checkpointed consumer of the global log.
// Handler side effects are not part of the checkpoint transaction, so they
// must tolerate redelivery.
type Subscriber struct {
	db          *gorm.DB
	log         *zap.Logger
	events      domain.EventLog
	checkpoints domain.CheckpointRepository
	clock       clock.Clock
	gaps        *service.GapGuard
	handler     Handler
	filter      map[string]struct{}
	cfg         Config
}

func New(db *gorm.DB, log *zap.Logger, events domain.EventLog, checkpoints domain.CheckpointRepository, clk clock.Clock, cfg Config, handler Handler) (*Subscriber, error) {
	if cfg.Name == "" {
		return nil, errors.New("subscriber name is required")
	}
	if handler == nil {
		return nil, errors.New("subscriber handler is required")
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	cfg = cfg.withDefaults()

	filter := make(map[string]struct{}, len(cfg.EventTypes))
	for _, t := range cfg.EventTypes {
		filter[t] = struct{}{}
	}

	return &Subscriber{
		db:          db,
		log:         log.Named("eventlog.subscriber").With(zap.String("consumer", cfg.Name)),
		events:      events,
		checkpoints: checkpoints,
		clock:       clk,
		gaps:        service.NewGapGuard(cfg.GapTimeout, clk),
		handler:     handler,
		filter:      filter,
		cfg:         cfg,
	}, nil
}

func (s *Subscriber) Name() string { return s.cfg.Name }

func (s *Subscriber) RunForever(ctx context.Context) {
	for {
		processed, err := s.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("subscriber run failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
		if processed >= s.cfg.BatchSize {
			continue
		}
		s.events.Wait(ctx, s.cfg.PollInterval)
		if ctx.Err() != nil {
			return
		}
	}
}

// RunOnce processes one batch and reports how many records it consumed.
func (s *Subscriber) RunOnce(ctx context.Context) (int, error) {
	position, err := s.checkpoints.Get(ctx, s.db, s.cfg.Name)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}

	records, err := s.events.ReadAll(ctx, position, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	ready := s.gaps.Ready(position, records)

	processed := 0
	for _, rec := range ready {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if s.wants(rec.EventType) {
			if err := s.handler(ctx, rec); err != nil {
				return processed, fmt.Errorf("handle %s at %d: %w", rec.EventType, rec.GlobalPosition, err)
			}
		}
		if err := s.checkpoints.Save(ctx, s.db, s.cfg.Name, rec.GlobalPosition, s.clock.Now()); err != nil {
			return processed, fmt.Errorf("save checkpoint: %w", err)
		}
		processed++
	}
	return processed, nil
}

func (s *Subscriber) wants(eventType string) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[eventType]
	return ok
}
