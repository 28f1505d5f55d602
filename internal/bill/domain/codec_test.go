package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecKeepsDecimalPrecision(t *testing.T) {
	total := decimal.RequireFromString("1234567890.123456789")
	typ, payload, err := EncodeEvent(BillCreated{BillID: "b1", Title: "t", Total: total, CreatedAt: baseTime})
	require.NoError(t, err)
	assert.Equal(t, EventBillCreated, typ)
	assert.Contains(t, string(payload), `"total":"1234567890.123456789"`)

	ev, err := DecodeEvent(typ, payload)
	require.NoError(t, err)
	created, ok := ev.(BillCreated)
	require.True(t, ok)
	assert.True(t, total.Equal(created.Total))
	assert.Equal(t, baseTime, created.CreatedAt.UTC())
}

func TestDecodeRejectsUnknownAndMalformed(t *testing.T) {
	_, err := DecodeEvent("BillDeleted", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = DecodeEvent(EventOcrCompleted, []byte(`{"confidence":"high"}`))
	assert.Error(t, err)
}
