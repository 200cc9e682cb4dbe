package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store"
	"github.com/vovakirdan/boardsync/internal/store/memory"
)

func mustNotification(t *testing.T, sink *ChanSink, kind NotificationKind) *Notification {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-sink.Notifications():
			if n == nil {
				continue
			}
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("expected notification kind %v not received", kind)
			return nil
		}
	}
}

func mustNoNotification(t *testing.T, sink *ChanSink) {
	t.Helper()

	select {
	case n := <-sink.Notifications():
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func subscribe(t *testing.T, hub *Hub, room string) (*ChanSink, string, SinkHandle) {
	t.Helper()

	sink := NewChanSink(64)
	roomID, handle, err := hub.Subscribe(context.Background(), room, sink)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mustNotification(t, sink, NotifyConnected)
	return sink, roomID, handle
}

func newMemoryHub(t *testing.T) (*Hub, *memory.Store) {
	t.Helper()

	st := memory.New()
	p := NewPersister(st, 2, time.Second, nil)
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	return NewHub(st, p, Options{}), st
}

func flush(t *testing.T, hub *Hub) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hub.persister.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func stroke(id string, pts ...board.Point) board.Stroke {
	return board.Stroke{
		ID:          id,
		Points:      pts,
		Color:       board.DefaultColor,
		StrokeWidth: board.DefaultStrokeWidth,
		Mode:        board.ModeDraw,
	}
}

// failingStore fails every call and counts attempts.
type failingStore struct {
	mu    sync.Mutex
	loads int
	saves int
}

var errStoreDown = errors.New("store down")

func (f *failingStore) Load(context.Context, string) (board.RoomState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return board.RoomState{}, errStoreDown
}

func (f *failingStore) Save(context.Context, string, board.RoomState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return errStoreDown
}

func (f *failingStore) Close() error { return nil }

func (f *failingStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads, f.saves
}

var _ store.SnapshotStore = (*failingStore)(nil)

// slowStore delays its first save so a later save can be queued behind it.
type slowStore struct {
	*memory.Store
	delay time.Duration
	once  sync.Once
}

func (s *slowStore) Save(ctx context.Context, roomID string, state board.RoomState) error {
	s.once.Do(func() { time.Sleep(s.delay) })
	return s.Store.Save(ctx, roomID, state)
}
