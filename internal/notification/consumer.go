package notification

import (
	"context"
	"fmt"
	"strings"

	billdomain "github.com/smallbiznis/billflow/internal/bill/domain"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/config"
	eventlogdomain "github.com/smallbiznis/billflow/internal/eventlog/domain"
	"github.com/smallbiznis/billflow/internal/eventlog/subscriber"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ConsumerName = "notification.sink"

// BillLoader returns the current state of a bill.
type BillLoader interface {
	Load(ctx context.Context, billID string) (billdomain.Bill, error)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Events      eventlogdomain.EventLog
	Checkpoints eventlogdomain.CheckpointRepository
	Clock       clock.Clock
	Bills       BillLoader
	Sink        Sink
	Config      *config.EngineConfigHolder `optional:"true"`
}

// Consumer tells people when a bill is ready for a decision and when a
// decision was made. Delivery failures are logged and never block the log.
type Consumer struct {
	log   *zap.Logger
	bills BillLoader
	sink  Sink
	sub   *subscriber.Subscriber
}

func NewConsumer(p Params) (*Consumer, error) {
	c := &Consumer{
		log:   p.Log.Named("notification.consumer"),
		bills: p.Bills,
		sink:  p.Sink,
	}

	engineCfg := p.Config.Get()
	sub, err := subscriber.New(p.DB, p.Log, p.Events, p.Checkpoints, p.Clock, subscriber.Config{
		Name:         ConsumerName,
		PollInterval: engineCfg.Notification.PollInterval,
		GapTimeout:   engineCfg.Projection.GapTimeout,
		EventTypes:   []string{billdomain.EventOcrCompleted, billdomain.EventBillApproved},
	}, c.handle)
	if err != nil {
		return nil, err
	}
	c.sub = sub
	return c, nil
}

func (c *Consumer) RunForever(ctx context.Context) { c.sub.RunForever(ctx) }

func (c *Consumer) RunOnce(ctx context.Context) (int, error) { return c.sub.RunOnce(ctx) }

func (c *Consumer) handle(ctx context.Context, rec eventlogdomain.Record) error {
	log := c.log.With(
		zap.String("bill_id", rec.AggregateID),
		zap.String("event_type", rec.EventType),
		zap.Int64("position", rec.GlobalPosition),
	)

	ev, err := billdomain.DecodeEvent(rec.EventType, rec.Payload)
	if err != nil {
		log.Warn("notification skipped, undecodable event", zap.Error(err))
		return nil
	}

	bill, err := c.bills.Load(ctx, rec.AggregateID)
	if err != nil {
		log.Warn("notification skipped, bill not loaded", zap.Error(err))
		return nil
	}

	msg, ok := Compose(bill, ev)
	if !ok {
		return nil
	}
	if err := c.sink.Notify(ctx, msg); err != nil {
		log.Warn("notification delivery failed", zap.Error(err))
		return nil
	}
	log.Info("notification sent", zap.String("template", msg.Template))
	return nil
}

// Compose builds the message for ev, or false when ev is not notified.
func Compose(bill billdomain.Bill, ev billdomain.Event) (Message, bool) {
	switch e := ev.(type) {
	case billdomain.OcrCompleted:
		data := map[string]any{
			"BillID":        bill.ID,
			"Title":         bill.Title,
			"Total":         bill.Total.String(),
			"ConfidencePct": e.Confidence * 100,
		}
		text := fmt.Sprintf("Bill %q (%s) was read with %.0f%% confidence and awaits approval", bill.Title, bill.ID, e.Confidence*100)
		if e.ExtractedTotal != nil {
			data["ExtractedTotal"] = e.ExtractedTotal.String()
			if !e.ExtractedTotal.Equal(bill.Total) {
				text += fmt.Sprintf("; document total %s differs from %s", e.ExtractedTotal.String(), bill.Total.String())
			}
		}
		return Message{BillID: bill.ID, Template: "bill_processed", Text: text, Data: data}, true
	case billdomain.BillApproved:
		decision := strings.ToLower(string(e.Decision))
		text := fmt.Sprintf("Bill %q (%s) was %s by %s", bill.Title, bill.ID, decision, e.ApproverID)
		if e.Reason != "" {
			text += ": " + e.Reason
		}
		return Message{
			BillID:   bill.ID,
			Template: "bill_decided",
			Text:     text,
			Data: map[string]any{
				"BillID":     bill.ID,
				"Title":      bill.Title,
				"Decision":   decision,
				"ApproverID": e.ApproverID,
				"Reason":     e.Reason,
			},
		}, true
	}
	return Message{}, false
}
