package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/board"
)

// Publisher sends one event to a room.
type Publisher interface {
	Publish(ctx context.Context, roomID string, ev board.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, roomID string, ev board.Event) error

func (f PublisherFunc) Publish(ctx context.Context, roomID string, ev board.Event) error {
	return f(ctx, roomID, ev)
}

// APIPublisher adapts API to Publisher.
func APIPublisher(api *API) Publisher {
	return PublisherFunc(func(ctx context.Context, roomID string, ev board.Event) error {
		_, err := api.Publish(ctx, roomID, ev)
		return err
	})
}

// Outbox sends events in order from a single goroutine. While a send is in
// flight, consecutive append updates for the same stroke merge into one, so
// a slow network costs fewer, larger requests instead of a growing queue.
type Outbox struct {
	roomID string
	pub    Publisher
	log    *zerolog.Logger

	mu    sync.Mutex
	queue []board.Event
	wake  chan struct{}

	sent   atomic.Int64
	failed atomic.Int64
	merged atomic.Int64
}

// NewOutbox creates an outbox for one room.
func NewOutbox(roomID string, pub Publisher, logger *zerolog.Logger) *Outbox {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Outbox{
		roomID: roomID,
		pub:    pub,
		log:    logger,
		wake:   make(chan struct{}, 1),
	}
}

// Emit queues an event. It never blocks on the network.
func (o *Outbox) Emit(ev board.Event) {
	o.mu.Lock()
	if n := len(o.queue); n > 0 {
		if merged, ok := mergeAppend(o.queue[n-1], ev); ok {
			o.queue[n-1] = merged
			o.mu.Unlock()
			o.merged.Add(1)
			return
		}
	}
	o.queue = append(o.queue, ev)
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// mergeAppend joins two append updates for one stroke.
func mergeAppend(prev, next board.Event) (board.Event, bool) {
	a, ok := prev.(board.StrokeUpdate)
	if !ok || !a.Append || a.Final {
		return nil, false
	}
	b, ok := next.(board.StrokeUpdate)
	if !ok || !b.Append || b.StrokeID != a.StrokeID {
		return nil, false
	}
	pts := make([]board.Point, 0, len(a.Points)+len(b.Points))
	pts = append(pts, a.Points...)
	tail := b.Points
	if len(pts) > 0 && len(tail) > 0 && tail[0] == pts[len(pts)-1] {
		tail = tail[1:]
	}
	pts = append(pts, tail...)
	return board.StrokeUpdate{StrokeID: a.StrokeID, Points: pts, Append: true, Final: b.Final}, true
}

func (o *Outbox) pop() (board.Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return nil, false
	}
	ev := o.queue[0]
	o.queue[0] = nil
	o.queue = o.queue[1:]
	return ev, true
}

// Pending returns the number of queued events.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Run sends queued events until ctx is done. Failed sends are logged and
// dropped; the next init-state or poll resynchronises the replica.
func (o *Outbox) Run(ctx context.Context) {
	for {
		for {
			ev, ok := o.pop()
			if !ok {
				break
			}
			if err := o.pub.Publish(ctx, o.roomID, ev); err != nil {
				if ctx.Err() != nil {
					return
				}
				o.failed.Add(1)
				o.log.Warn().Err(err).Str("room", o.roomID).Str("event", string(ev.Kind())).Msg("event not sent")
				continue
			}
			o.sent.Add(1)
		}
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		}
	}
}

// Stats returns sent, failed and merged counts.
func (o *Outbox) Stats() (sent, failed, merged int64) {
	return o.sent.Load(), o.failed.Load(), o.merged.Load()
}
