package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/observability/metrics"
	pkgdb "github.com/smallbiznis/billflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultReadLimit = 100
	maxReadLimit     = 1000
	maxAggregateID   = 36
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Notifier domain.Notifier
	Metrics  *metrics.Metrics `optional:"true"`
}

type Log struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	notifier domain.Notifier
	metrics  *metrics.Metrics
}

func New(p Params) *Log {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Log{
		db:       p.DB,
		log:      p.Log.Named("eventlog"),
		clock:    clk,
		repo:     p.Repo,
		notifier: p.Notifier,
		metrics:  p.Metrics,
	}
}

// Append writes events to the aggregate stream if its current version equals
// expectedVersion. Either every event commits or none does.
func (l *Log) Append(ctx context.Context, aggregateID string, expectedVersion int64, events []domain.NewEvent) (domain.AppendResult, error) {
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" || len(aggregateID) > maxAggregateID {
		return domain.AppendResult{}, domain.ErrInvalidAggregateID
	}
	if expectedVersion < 0 {
		return domain.AppendResult{}, domain.ErrInvalidVersion
	}
	if len(events) == 0 {
		return domain.AppendResult{}, domain.ErrEmptyAppend
	}

	now := l.clock.Now().UTC()
	records := make([]domain.Record, 0, len(events))
	for i, ev := range events {
		recordedAt := ev.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = now
		}
		records = append(records, domain.Record{
			EventID:       ulid.Make().String(),
			AggregateType: domain.AggregateTypeBill,
			AggregateID:   aggregateID,
			Sequence:      expectedVersion + int64(i) + 1,
			EventType:     ev.Type,
			Payload:       ev.Payload,
			RecordedAt:    recordedAt.UTC(),
		})
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := l.repo.CurrentVersion(ctx, tx, aggregateID)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return domain.ErrConcurrencyConflict
		}
		return l.repo.Insert(ctx, tx, records)
	})
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) || pkgdb.IsDuplicateKeyErr(err) || pkgdb.IsBusyErr(err) {
			return domain.AppendResult{}, domain.ErrConcurrencyConflict
		}
		return domain.AppendResult{}, fmt.Errorf("append %s: %w", aggregateID, err)
	}

	last := records[len(records)-1]
	l.metrics.RecordEventsAppended(ctx, len(records))
	if l.notifier != nil {
		l.notifier.Notify(ctx, last.GlobalPosition)
	}

	return domain.AppendResult{Version: last.Sequence, Records: records}, nil
}

func (l *Log) ReadStream(ctx context.Context, aggregateID string) ([]domain.Record, error) {
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return nil, domain.ErrInvalidAggregateID
	}
	records, err := l.repo.ListStream(ctx, l.db, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", aggregateID, err)
	}
	return records, nil
}

// ReadAll returns up to limit records after fromPosition in global order.
func (l *Log) ReadAll(ctx context.Context, fromPosition int64, limit int) ([]domain.Record, error) {
	if fromPosition < 0 {
		fromPosition = 0
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}
	if limit > maxReadLimit {
		limit = maxReadLimit
	}
	records, err := l.repo.ListAfter(ctx, l.db, fromPosition, limit)
	if err != nil {
		return nil, fmt.Errorf("read all from %d: %w", fromPosition, err)
	}
	return records, nil
}

func (l *Log) Head(ctx context.Context) (int64, error) {
	return l.repo.HeadPosition(ctx, l.db)
}

func (l *Log) Wait(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if l.notifier == nil {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		return false
	}

	ch, unsubscribe := l.notifier.Subscribe()
	defer unsubscribe()

	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	case <-timer.C:
		return false
	}
}

// Follow delivers every record after fromPosition to fn in global order and
// then tails the log until ctx ends or fn fails. pollInterval bounds how long
// a missed signal can delay delivery.
func (l *Log) Follow(ctx context.Context, fromPosition int64, pollInterval time.Duration, fn func(domain.Record) error) error {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	// Subscribe before the first read so no append between read and wait is lost.
	var ch <-chan int64
	if l.notifier != nil {
		var unsubscribe func()
		ch, unsubscribe = l.notifier.Subscribe()
		defer unsubscribe()
	}

	position := fromPosition
	for {
		records, err := l.ReadAll(ctx, position, defaultReadLimit)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := fn(rec); err != nil {
				return err
			}
			position = rec.GlobalPosition
		}
		if len(records) == defaultReadLimit {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		case <-time.After(pollInterval):
		}
	}
}

var _ domain.EventLog = (*Log)(nil)
