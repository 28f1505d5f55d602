package domain

import (
	"context"
	"errors"
	"time"
)

// EventLog is the append-only source of truth consumed by the dispatcher and
// the event consumers.
type EventLog interface {
	Append(ctx context.Context, aggregateID string, expectedVersion int64, events []NewEvent) (AppendResult, error)
	ReadStream(ctx context.Context, aggregateID string) ([]Record, error)
	ReadAll(ctx context.Context, fromPosition int64, limit int) ([]Record, error)
	Head(ctx context.Context) (int64, error)
	// Wait blocks until a new append is signalled, the timeout elapses or ctx
	// ends. It reports whether a signal arrived.
	Wait(ctx context.Context, timeout time.Duration) bool
}

// Notifier wakes tailing readers after commits. Signals may be coalesced.
type Notifier interface {
	Notify(ctx context.Context, position int64)
	Subscribe() (<-chan int64, func())
}

const AggregateTypeBill = "bill"

var (
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
	ErrEmptyAppend         = errors.New("empty_append")
	ErrInvalidAggregateID  = errors.New("invalid_aggregate_id")
	ErrInvalidVersion      = errors.New("invalid_expected_version")
	ErrCheckpointMoved     = errors.New("checkpoint_moved")
)
