package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/billflow/internal/providers/email"
	"github.com/smallbiznis/billflow/internal/providers/slack"
)

// Message is one outbound notice about a bill.
type Message struct {
	BillID   string
	Template string
	Text     string
	Data     map[string]any
}

type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

type EmailSink struct {
	provider   email.Provider
	recipients []string
}

func NewEmailSink(provider email.Provider, recipients []string) *EmailSink {
	return &EmailSink{provider: provider, recipients: recipients}
}

func (s *EmailSink) Notify(ctx context.Context, msg Message) error {
	if len(s.recipients) == 0 {
		return nil
	}
	return s.provider.SendTemplate(ctx, s.recipients, msg.Template, msg.Data)
}

type SlackSink struct {
	provider slack.Provider
}

func NewSlackSink(provider slack.Provider) *SlackSink {
	return &SlackSink{provider: provider}
}

func (s *SlackSink) Notify(ctx context.Context, msg Message) error {
	if msg.Text == "" {
		return nil
	}
	return s.provider.PostMessage(ctx, msg.Text)
}

// FanOut delivers to every sink and joins their errors.
type FanOut []Sink

func (f FanOut) Notify(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Notify(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}
