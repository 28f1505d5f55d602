package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBillProcessed(t *testing.T) {
	body, subject, err := Render("bill_processed", map[string]any{
		"BillID":        "b1",
		"Title":         "Water",
		"Total":         "50.00",
		"ConfidencePct": 90.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Bill Water is ready for approval", subject)
	assert.Contains(t, body, "Confidence: 90%")
	assert.NotContains(t, body, "Total found in document")
}

func TestSendTemplateBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "billflow@local"})

	var gotAddr string
	var gotTo []string
	var gotMsg []byte
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"ops@local"}, "bill_decided", map[string]any{
		"BillID":     "b1",
		"Title":      "Water",
		"Decision":   "approved",
		"ApproverID": "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"ops@local"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Bill Water was approved")
	assert.Contains(t, string(gotMsg), "by alice")
}

func TestSendWithoutRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25})
	assert.ErrorIs(t, p.Send(context.Background(), nil, "s", "b"), ErrNoRecipients)
}
