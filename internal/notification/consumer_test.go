package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/config"
	eventlogdomain "github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/notifier"
	eventlogrepo "github.com/smallbiznis/billflow/internal/eventlog/repository"
	eventlogservice "github.com/smallbiznis/billflow/internal/eventlog/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (s *recordingSink) Notify(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

type fixture struct {
	dispatcher *billservice.Dispatcher
	consumer   *Consumer
	sink       *recordingSink
	db         *gorm.DB
}

func setup(t *testing.T) *fixture {
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
	require.NoError(t, conn.AutoMigrate(&eventlogdomain.Record{}, &eventlogdomain.Checkpoint{}))

	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	events := eventlogservice.New(eventlogservice.Params{
		DB:       conn,
		Log:      zap.NewNop(),
		Clock:    clk,
		Repo:     eventlogrepo.Provide(),
		Notifier: notifier.NewHub(),
	})
	dispatcher := billservice.New(billservice.Params{
		Log:    zap.NewNop(),
		Events: events,
		Clock:  clk,
		Config: config.NewStaticEngineConfig(config.DefaultEngineConfig()),
	})

	sink := &recordingSink{}
	consumer, err := NewConsumer(Params{
		DB:          conn,
		Log:         zap.NewNop(),
		Events:      events,
		Checkpoints: eventlogrepo.ProvideCheckpoints(),
		Clock:       clk,
		Bills:       dispatcher,
		Sink:        sink,
	})
	require.NoError(t, err)

	return &fixture{dispatcher: dispatcher, consumer: consumer, sink: sink, db: conn}
}

func (f *fixture) run(t *testing.T, commands ...billdomain.Command) {
	t.Helper()
	for _, cmd := range commands {
		_, err := f.dispatcher.Dispatch(context.Background(), cmd)
		require.NoError(t, err)
	}
}

func lifecycle() []billdomain.Command {
	total := decimal.RequireFromString("49.50")
	return []billdomain.Command{
		billdomain.CreateBill{ID: "b1", Title: "Water", Total: decimal.RequireFromString("50.00")},
		billdomain.AttachFile{BillID: "b1", Filename: "water.pdf", ContentType: "application/pdf", FileSize: 10},
		billdomain.ApplyOcrResult{BillID: "b1", ExtractedText: "Total 49.50", ExtractedTotal: &total, Confidence: 0.9},
		billdomain.ApproveBill{BillID: "b1", ApproverID: "alice", Decision: billdomain.DecisionRejected, Reason: "amount mismatch"},
	}
}

func TestConsumerNotifiesProcessedAndDecided(t *testing.T) {
	f := setup(t)
	f.run(t, lifecycle()...)

	n, err := f.consumer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.Len(t, f.sink.msgs, 2)
	assert.Equal(t, "bill_processed", f.sink.msgs[0].Template)
	assert.Contains(t, f.sink.msgs[0].Text, "differs")
	assert.Equal(t, "49.5", f.sink.msgs[0].Data["ExtractedTotal"])

	assert.Equal(t, "bill_decided", f.sink.msgs[1].Template)
	assert.Equal(t, "rejected", f.sink.msgs[1].Data["Decision"])
	assert.Contains(t, f.sink.msgs[1].Text, "amount mismatch")

	n, err = f.consumer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.sink.msgs, 2)
}

func TestConsumerDeliveryFailureDoesNotBlock(t *testing.T) {
	f := setup(t)
	f.sink.err = errors.New("smtp down")
	f.run(t, lifecycle()...)

	_, err := f.consumer.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.sink.msgs, 2)

	var cp eventlogdomain.Checkpoint
	require.NoError(t, f.db.Where("name = ?", ConsumerName).First(&cp).Error)
	assert.EqualValues(t, 5, cp.Position)
}

func TestComposeIgnoresOtherEvents(t *testing.T) {
	_, ok := Compose(billdomain.Bill{ID: "b1"}, billdomain.BillCreated{BillID: "b1"})
	assert.False(t, ok)
}

type failingSink struct{}

func (failingSink) Notify(context.Context, Message) error { return errors.New("boom") }

func TestFanOutJoinsErrors(t *testing.T) {
	rec := &recordingSink{}
	err := FanOut{failingSink{}, rec}.Notify(context.Background(), Message{BillID: "b1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, rec.msgs, 1)
}
