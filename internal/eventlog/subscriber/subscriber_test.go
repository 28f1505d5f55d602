package subscriber

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/notifier"
	"github.com/smallbiznis/billflow/internal/eventlog/repository"
	"github.com/smallbiznis/billflow/internal/eventlog/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db          *gorm.DB
	log         *service.Log
	checkpoints domain.CheckpointRepository
	clock       *clock.FakeClock
}

func setup(t *testing.T) fixture {
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

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return fixture{
		db: conn,
		log: service.New(service.Params{
			DB:       conn,
			Log:      zap.NewNop(),
			Clock:    clk,
			Repo:     repository.Provide(),
			Notifier: notifier.NewHub(),
		}),
		checkpoints: repository.ProvideCheckpoints(),
		clock:       clk,
	}
}

func (f fixture) append(t *testing.T, id string, expected int64, types ...string) {
	t.Helper()
	evs := make([]domain.NewEvent, 0, len(types))
	for _, typ := range types {
		evs = append(evs, domain.NewEvent{Type: typ, Payload: []byte(`{}`)})
	}
	_, err := f.log.Append(context.Background(), id, expected, evs)
	require.NoError(t, err)
}

func TestRunOnceDeliversFilteredEventsAndCheckpoints(t *testing.T) {
	f := setup(t)
	f.append(t, "b1", 0, "BillCreated")
	f.append(t, "b1", 1, "FileAttached", "OcrRequested")

	var seen []string
	sub, err := New(f.db, zap.NewNop(), f.log, f.checkpoints, f.clock, Config{
		Name:       "ocr.worker",
		EventTypes: []string{"OcrRequested"},
	}, func(_ context.Context, rec domain.Record) error {
		seen = append(seen, rec.EventType)
		return nil
	})
	require.NoError(t, err)

	n, err := sub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"OcrRequested"}, seen)

	pos, err := f.checkpoints.Get(context.Background(), f.db, "ocr.worker")
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	n, err = sub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, seen, 1)
}

func TestRunOnceStopsAtFailingRecord(t *testing.T) {
	f := setup(t)
	f.append(t, "b1", 0, "BillCreated")
	f.append(t, "b2", 0, "BillCreated")

	calls := 0
	sub, err := New(f.db, zap.NewNop(), f.log, f.checkpoints, f.clock, Config{Name: "notification.sink"},
		func(_ context.Context, rec domain.Record) error {
			calls++
			if rec.AggregateID == "b2" && calls == 2 {
				return errors.New("smtp down")
			}
			return nil
		})
	require.NoError(t, err)

	n, err := sub.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)

	pos, err := f.checkpoints.Get(context.Background(), f.db, "notification.sink")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)

	n, err = sub.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, calls)
}

func TestNewRequiresNameAndHandler(t *testing.T) {
	f := setup(t)

	_, err := New(f.db, zap.NewNop(), f.log, f.checkpoints, f.clock, Config{}, func(context.Context, domain.Record) error { return nil })
	assert.Error(t, err)

	_, err = New(f.db, zap.NewNop(), f.log, f.checkpoints, f.clock, Config{Name: "x"}, nil)
	assert.Error(t, err)
}
