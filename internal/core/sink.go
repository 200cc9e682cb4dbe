package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/boardsync/internal/board"
)

// NotificationKind describes what a sink is told.
type NotificationKind int

const (
	// NotifyConnected opens every subscription.
	NotifyConnected NotificationKind = iota
	// NotifyInitState carries the full snapshot known to this process.
	NotifyInitState
	// NotifyEvent carries one live delta.
	NotifyEvent
)

// Notification is pushed to sinks. State is set for NotifyInitState,
// Event for NotifyEvent.
type Notification struct {
	Kind      NotificationKind
	RoomID    string
	Timestamp time.Time
	State     board.RoomState
	Event     board.Event
}

// Sink is a process-local push destination for one subscriber connection.
// Deliver must not block; an error removes the sink from its room.
type Sink interface {
	ID() string
	Deliver(n *Notification) error
}

// ChanSink buffers notifications for a transport writer loop.
type ChanSink struct {
	id        string
	ch        chan *Notification
	done      chan struct{}
	closeOnce sync.Once
}

// MinSinkBuffer fits the connected and init-state messages every
// subscription starts with.
const MinSinkBuffer = 2

// NewChanSink constructs a sink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	if buffer < MinSinkBuffer {
		buffer = MinSinkBuffer
	}
	return &ChanSink{
		id:   uuid.NewString(),
		ch:   make(chan *Notification, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the sink identifier.
func (s *ChanSink) ID() string {
	return s.id
}

// Deliver enqueues without blocking. A full buffer is a delivery failure.
func (s *ChanSink) Deliver(n *Notification) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}
	select {
	case s.ch <- n:
		return nil
	default:
		return ErrSinkFull
	}
}

// Notifications is read by the transport writer.
func (s *ChanSink) Notifications() <-chan *Notification {
	return s.ch
}

// Done is closed once the sink is closed.
func (s *ChanSink) Done() <-chan struct{} {
	return s.done
}

// Close marks the sink closed. Safe to call more than once.
func (s *ChanSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
