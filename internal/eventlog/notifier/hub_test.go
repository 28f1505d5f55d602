package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub()
	first, closeFirst := hub.Subscribe()
	defer closeFirst()
	second, closeSecond := hub.Subscribe()
	defer closeSecond()

	hub.Notify(context.Background(), 7)

	select {
	case pos := <-first:
		assert.Equal(t, int64(7), pos)
	case <-time.After(time.Second):
		t.Fatal("first subscriber not notified")
	}
	select {
	case pos := <-second:
		assert.Equal(t, int64(7), pos)
	case <-time.After(time.Second):
		t.Fatal("second subscriber not notified")
	}
}

func TestHubCoalescesBursts(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for i := int64(1); i <= 10; i++ {
		hub.Notify(context.Background(), i)
	}

	assert.Len(t, ch, 1)
	assert.Equal(t, int64(1), <-ch)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	unsubscribe()
	unsubscribe()

	hub.Notify(context.Background(), 1)
	assert.Len(t, ch, 0)
}
