package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/notifier"
	"github.com/smallbiznis/billflow/internal/eventlog/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupLog(t *testing.T) (*Log, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&domain.Record{}, &domain.Checkpoint{}))

	l := New(Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Repo:     repository.Provide(),
		Notifier: notifier.NewHub(),
	})
	return l, conn
}

func events(types ...string) []domain.NewEvent {
	out := make([]domain.NewEvent, 0, len(types))
	for _, typ := range types {
		out = append(out, domain.NewEvent{Type: typ, Payload: []byte(`{}`)})
	}
	return out
}

func TestAppendAssignsContiguousSequences(t *testing.T) {
	l, _ := setupLog(t)
	ctx := context.Background()

	res, err := l.Append(ctx, "b1", 0, events("BillCreated"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Version)

	res, err = l.Append(ctx, "b1", 1, events("FileAttached", "OcrRequested"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Version)
	require.Len(t, res.Records, 2)
	assert.Equal(t, int64(2), res.Records[0].Sequence)
	assert.Equal(t, int64(3), res.Records[1].Sequence)
	assert.NotEqual(t, res.Records[0].EventID, res.Records[1].EventID)
	assert.Less(t, res.Records[0].GlobalPosition, res.Records[1].GlobalPosition)

	stream, err := l.ReadStream(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, stream, 3)
	for i, rec := range stream {
		assert.Equal(t, int64(i+1), rec.Sequence)
		assert.Equal(t, domain.AggregateTypeBill, rec.AggregateType)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), rec.RecordedAt.UTC())
	}
}

func TestAppendRejectsStaleVersion(t *testing.T) {
	l, _ := setupLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, "b1", 0, events("BillCreated"))
	require.NoError(t, err)

	_, err = l.Append(ctx, "b1", 0, events("BillCreated"))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	_, err = l.Append(ctx, "b1", 5, events("FileAttached"))
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	stream, err := l.ReadStream(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, stream, 1)
}

func TestAppendValidatesInput(t *testing.T) {
	l, _ := setupLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, "", 0, events("BillCreated"))
	assert.ErrorIs(t, err, domain.ErrInvalidAggregateID)

	_, err = l.Append(ctx, "b1", -1, events("BillCreated"))
	assert.ErrorIs(t, err, domain.ErrInvalidVersion)

	_, err = l.Append(ctx, "b1", 0, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyAppend)
}

func TestConcurrentAppendsOneWinnerPerVersion(t *testing.T) {
	l, _ := setupLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, "b1", 0, events("BillCreated"))
	require.NoError(t, err)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Append(ctx, "b1", 1, events("FileAttached"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, domain.ErrConcurrencyConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, writers-1, conflicts)

	stream, err := l.ReadStream(ctx, "b1")
	require.NoError(t, err)
	assert.Len(t, stream, 2)
}

func TestReadAllIsGloballyOrderedAndRestartable(t *testing.T) {
	l, _ := setupLog(t)
	ctx := context.Background()

	_, err := l.Append(ctx, "a", 0, events("BillCreated"))
	require.NoError(t, err)
	_, err = l.Append(ctx, "b", 0, events("BillCreated"))
	require.NoError(t, err)
	_, err = l.Append(ctx, "a", 1, events("FileAttached", "OcrRequested"))
	require.NoError(t, err)

	all, err := l.ReadAll(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].GlobalPosition, all[i].GlobalPosition)
	}
	assert.Equal(t, "b", all[1].AggregateID)

	rest, err := l.ReadAll(ctx, all[1].GlobalPosition, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, all[2].EventID, rest[0].EventID)

	head, err := l.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, all[3].GlobalPosition, head)
}

func TestWaitWakesOnAppend(t *testing.T) {
	l, _ := setupLog(t)
	ctx := context.Background()

	woke := make(chan bool, 1)
	ready := make(chan struct{})
	go func() {
		ch, unsubscribe := l.notifier.Subscribe()
		defer unsubscribe()
		close(ready)
		select {
		case <-ch:
			woke <- true
		case <-time.After(2 * time.Second):
			woke <- false
		}
	}()
	<-ready

	_, err := l.Append(ctx, "b1", 0, events("BillCreated"))
	require.NoError(t, err)
	assert.True(t, <-woke)

	assert.False(t, l.Wait(ctx, 10*time.Millisecond))
}

func TestFollowDeliversBacklogThenTails(t *testing.T) {
	l, _ := setupLog(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := l.Append(ctx, "b1", 0, events("BillCreated"))
	require.NoError(t, err)

	got := make(chan domain.Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- l.Follow(ctx, 0, 20*time.Millisecond, func(rec domain.Record) error {
			got <- rec
			return nil
		})
	}()

	first := <-got
	assert.Equal(t, "BillCreated", first.EventType)

	_, err = l.Append(context.Background(), "b1", 1, events("FileAttached"))
	require.NoError(t, err)

	select {
	case rec := <-got:
		assert.Equal(t, "FileAttached", rec.EventType)
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not tail new append")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCheckpointAdvanceIsCompareAndSwap(t *testing.T) {
	_, db := setupLog(t)
	ctx := context.Background()
	checkpoints := repository.ProvideCheckpoints()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, checkpoints.Advance(ctx, db, "projection.bills", 0, 1, now))
	require.NoError(t, checkpoints.Advance(ctx, db, "projection.bills", 1, 2, now))

	// A second writer still at 1.
	assert.ErrorIs(t, checkpoints.Advance(ctx, db, "projection.bills", 1, 2, now), domain.ErrCheckpointMoved)

	// A reset moves every writer back behind it.
	require.NoError(t, checkpoints.Save(ctx, db, "projection.bills", 0, now))
	assert.ErrorIs(t, checkpoints.Advance(ctx, db, "projection.bills", 2, 3, now), domain.ErrCheckpointMoved)
	require.NoError(t, checkpoints.Advance(ctx, db, "projection.bills", 0, 1, now))

	// Only one writer creates a missing row.
	require.NoError(t, checkpoints.Advance(ctx, db, "ocr.worker", 0, 5, now))
	assert.ErrorIs(t, checkpoints.Advance(ctx, db, "ocr.worker", 0, 5, now), domain.ErrCheckpointMoved)

	position, err := checkpoints.Get(ctx, db, "projection.bills")
	require.NoError(t, err)
	assert.Equal(t, int64(1), position)
}
