package core

import (
	"testing"
	"time"
)

// stubSink records deliveries and can be told to fail.
type stubSink struct {
	id     string
	fail   error
	got    []*Notification
	closed bool
}

func (s *stubSink) ID() string { return s.id }

func (s *stubSink) Deliver(n *Notification) error {
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, n)
	return nil
}

func (s *stubSink) Close() { s.closed = true }

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	s := &stubSink{id: "a"}

	h1 := r.Register("room-1", s)
	h2 := r.Register("room-1", s)
	if h1 != h2 {
		t.Fatalf("expected same handle, got %q and %q", h1, h2)
	}
	if n := r.Count("room-1"); n != 1 {
		t.Fatalf("expected 1 sink, got %d", n)
	}
}

func TestRegistryUnregisterUnknown(t *testing.T) {
	r := NewRegistry(nil)
	if r.Unregister("missing", "nope") {
		t.Fatal("unregister of unknown sink should report false")
	}

	s := &stubSink{id: "a"}
	h := r.Register("room-1", s)
	if !r.Unregister("room-1", h) {
		t.Fatal("expected unregister to succeed")
	}
	if r.Unregister("room-1", h) {
		t.Fatal("second unregister should be a no-op")
	}
	if r.Rooms() != 0 {
		t.Fatalf("empty room should be dropped, got %d rooms", r.Rooms())
	}
}

func TestRegistryFanoutPrunesFailingSinks(t *testing.T) {
	r := NewRegistry(nil)
	good := &stubSink{id: "good"}
	bad := &stubSink{id: "bad", fail: ErrSinkFull}
	r.Register("room-1", good)
	r.Register("room-1", bad)

	n := &Notification{Kind: NotifyEvent, RoomID: "room-1", Timestamp: time.Now()}
	if delivered := r.Fanout("room-1", n); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if len(good.got) != 1 || good.got[0] != n {
		t.Fatalf("good sink missed notification: %+v", good.got)
	}
	if !bad.closed {
		t.Fatal("failing sink should be closed")
	}
	if c := r.Count("room-1"); c != 1 {
		t.Fatalf("failing sink should be pruned, count=%d", c)
	}
}

func TestRegistryFanoutEmptyRoom(t *testing.T) {
	r := NewRegistry(nil)
	if delivered := r.Fanout("nobody-here", &Notification{}); delivered != 0 {
		t.Fatalf("expected 0, got %d", delivered)
	}
}

func TestChanSinkFullAndClosed(t *testing.T) {
	s := NewChanSink(1)
	for i := 0; i < MinSinkBuffer; i++ {
		if err := s.Deliver(&Notification{}); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}
	if err := s.Deliver(&Notification{}); err != ErrSinkFull {
		t.Fatalf("expected ErrSinkFull, got %v", err)
	}
	s.Close()
	s.Close()
	if err := s.Deliver(&Notification{}); err != ErrSinkClosed {
		t.Fatalf("expected ErrSinkClosed, got %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("done should be closed")
	}
}
