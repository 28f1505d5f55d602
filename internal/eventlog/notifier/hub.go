package notifier

import (
	"context"
	"sync"

	"github.com/smallbiznis/billflow/internal/eventlog/domain"
)

// Hub fans append signals out to in-process subscribers. Each subscriber
// channel holds one pending signal; bursts collapse into a single wake-up.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan int64
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan int64)}
}

func (h *Hub) Notify(_ context.Context, position int64) {
	if h == nil {
		return
	}
	h.mu.Lock()
	subs := make([]chan int64, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- position:
		default:
		}
	}
}

func (h *Hub) Subscribe() (<-chan int64, func()) {
	ch := make(chan int64, 1)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

var _ domain.Notifier = (*Hub)(nil)
