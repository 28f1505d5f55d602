package service

import (
	"sync"
	"time"

	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/eventlog/domain"
)

// GapGuard trims a batch read from the global log at the first hole in
// global positions. A hole is usually an append that has taken its position
// but not committed yet; one that persists past the timeout belongs to a
// rolled back append and is skipped.
type GapGuard struct {
	mu      sync.Mutex
	timeout time.Duration
	clock   clock.Clock
	holeAt  int64
	since   time.Time
}

func NewGapGuard(timeout time.Duration, clk clock.Clock) *GapGuard {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &GapGuard{timeout: timeout, clock: clk}
}

// Ready returns the prefix of records that can be processed after the
// consumer's last position. Records must be in ascending position order.
func (g *GapGuard) Ready(last int64, records []domain.Record) []domain.Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	expected := last + 1
	for i, rec := range records {
		if rec.GlobalPosition == expected {
			expected++
			continue
		}
		if g.holeAt == expected && g.clock.Now().Sub(g.since) >= g.timeout {
			g.holeAt = 0
			expected = rec.GlobalPosition + 1
			continue
		}
		if g.holeAt != expected {
			g.holeAt = expected
			g.since = g.clock.Now()
		}
		return records[:i]
	}
	g.holeAt = 0
	return records
}

// Reset forgets a pending hole, used when a consumer rewinds.
func (g *GapGuard) Reset() {
	g.mu.Lock()
	g.holeAt = 0
	g.mu.Unlock()
}
