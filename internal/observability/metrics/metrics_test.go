package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("command", "CreateBill"),
		attribute.String("bill_id", "b1"),
		attribute.String("outcome", "applied"),
	)
	assert.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("bill_id"), attr.Key)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordCommand(ctx, "CreateBill", "applied", time.Millisecond)
		m.RecordConflictRetry(ctx, "CreateBill")
		m.RecordEventsAppended(ctx, 2)
		m.RecordProjectionApplied(ctx, "projection.bills", "BillCreated")
		m.RecordProjectionSkipped(ctx, "projection.bills", "BillCreated", "duplicate")
	})
}

func TestNoopMetricsRecord(t *testing.T) {
	m := NewNoop()
	assert.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.RecordCommand(context.Background(), "ApproveBill", "conflict", 3*time.Millisecond)
	})
}
