package http

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// publishWindow is the span over which a socket's publish budget applies.
const publishWindow = time.Minute

// publishLimiter caps inbound publishes per socket in fixed one-minute
// windows. A limit <= 0 disables it. Windows roll over lazily on the next
// call, so an idle socket costs nothing.
type publishLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	limit    int
	used     int
	windowAt time.Time
}

func newPublishLimiter(limit int, clk clock.Clock) *publishLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &publishLimiter{limit: limit, clock: clk, windowAt: clk.Now()}
}

func (l *publishLimiter) allow() bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.Sub(l.windowAt) >= publishWindow {
		l.windowAt = now
		l.used = 0
	}
	if l.used >= l.limit {
		return false
	}
	l.used++
	return true
}
