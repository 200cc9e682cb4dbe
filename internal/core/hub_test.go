package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store/memory"
)

func TestHubSubscribeSendsConnectedThenSnapshot(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	if _, err := hub.Publish(ctx, "room-1", board.StrokeStart{Stroke: stroke("s1", board.Point{X: 1, Y: 1})}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sink := NewChanSink(8)
	roomID, _, err := hub.Subscribe(ctx, "room-1", sink)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if roomID != "room-1" {
		t.Fatalf("unexpected room id %q", roomID)
	}

	first := <-sink.Notifications()
	if first.Kind != NotifyConnected {
		t.Fatalf("expected connected first, got %v", first.Kind)
	}
	second := <-sink.Notifications()
	if second.Kind != NotifyInitState {
		t.Fatalf("expected init state second, got %v", second.Kind)
	}
	if got := second.State.StrokeIDs(); len(got) != 1 || got[0] != "s1" {
		t.Fatalf("unexpected snapshot strokes: %v", got)
	}

	if _, err := hub.Publish(ctx, "room-1", board.Undo{StrokeID: "s1"}); err != nil {
		t.Fatalf("publish undo: %v", err)
	}
	delta := mustNotification(t, sink, NotifyEvent)
	if delta.Event.Kind() != board.KindUndo {
		t.Fatalf("unexpected delta %v", delta.Event.Kind())
	}
}

func TestHubPublishUndoScenario(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	events := []board.Event{
		board.StrokeStart{Stroke: stroke("s1", board.Point{})},
		board.StrokeUpdate{StrokeID: "s1", Points: []board.Point{{}, {X: 5, Y: 5}}},
		board.Undo{StrokeID: "s1"},
	}
	for _, ev := range events {
		if _, err := hub.Publish(ctx, "room-a", ev); err != nil {
			t.Fatalf("publish %s: %v", ev.Kind(), err)
		}
	}

	state, ok := hub.Cache().Peek("room-a")
	if !ok {
		t.Fatal("room should be warm")
	}
	if len(state.Strokes) != 0 {
		t.Fatalf("expected no strokes, got %v", state.StrokeIDs())
	}
}

func TestHubClearConvergesAllSubscribers(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	manifest := board.PdfManifest{SourceReference: "doc1", CurrentPage: 2}
	for _, ev := range []board.Event{
		board.PdfSet{Manifest: manifest},
		board.StrokeStart{Stroke: stroke("s1", board.Point{X: 1, Y: 2})},
		board.StrokeStart{Stroke: stroke("s2", board.Point{X: 3, Y: 4})},
	} {
		if _, err := hub.Publish(ctx, "session-b", ev); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	replicas := make([]board.RoomState, 2)
	sinks := make([]*ChanSink, 2)
	for i := range sinks {
		sinks[i], _, _ = subscribe(t, hub, "session-b")
		replicas[i] = mustNotification(t, sinks[i], NotifyInitState).State
	}

	ack, err := hub.Publish(ctx, "session-b", board.Clear{})
	if err != nil {
		t.Fatalf("publish clear: %v", err)
	}
	if ack.Delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", ack.Delivered)
	}

	for i, sink := range sinks {
		n := mustNotification(t, sink, NotifyEvent)
		replicas[i] = board.Apply(replicas[i], n.Event)
		if len(replicas[i].Strokes) != 0 {
			t.Fatalf("replica %d still has strokes %v", i, replicas[i].StrokeIDs())
		}
		if replicas[i].Pdf == nil || replicas[i].Pdf.SourceReference != "doc1" || replicas[i].Pdf.CurrentPage != 2 {
			t.Fatalf("replica %d lost manifest: %+v", i, replicas[i].Pdf)
		}
	}
}

func TestHubSetPageThenFetch(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	if _, err := hub.Publish(ctx, "room-c", board.PdfSet{Manifest: board.PdfManifest{SourceReference: "doc1", CurrentPage: 1}}); err != nil {
		t.Fatalf("publish pdf-set: %v", err)
	}
	sink, _, _ := subscribe(t, hub, "room-c")
	mustNotification(t, sink, NotifyInitState)

	_, manifest, err := hub.SetPage(ctx, "room-c", 3)
	if err != nil {
		t.Fatalf("set page: %v", err)
	}
	if manifest.CurrentPage != 3 || manifest.SourceReference != "doc1" {
		t.Fatalf("unexpected manifest %+v", manifest)
	}

	n := mustNotification(t, sink, NotifyEvent)
	if sp, ok := n.Event.(board.SetPage); !ok || sp.Page != 3 {
		t.Fatalf("expected set-page 3 delta, got %+v", n.Event)
	}

	_, state, source := hub.FetchState(ctx, "room-c")
	if source != SourceDurable {
		t.Fatalf("expected durable source, got %s", source)
	}
	if state.Pdf == nil || state.Pdf.CurrentPage != 3 || state.Pdf.SourceReference != "doc1" {
		t.Fatalf("unexpected fetched manifest %+v", state.Pdf)
	}
}

func TestHubSetPageRejectsInvalidPage(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	if _, err := hub.Publish(ctx, "room-d", board.PdfSet{Manifest: board.PdfManifest{SourceReference: "doc1", CurrentPage: 2}}); err != nil {
		t.Fatalf("publish pdf-set: %v", err)
	}

	for _, page := range []int{0, -1} {
		_, _, err := hub.SetPage(ctx, "room-d", page)
		if !errors.Is(err, ErrInvalidPage) || ErrorCode(err) != ErrCodeInvalidPage {
			t.Fatalf("page %d: expected invalid_page, got %v", page, err)
		}
	}

	state, _ := hub.Cache().Peek("room-d")
	if state.Pdf.CurrentPage != 2 {
		t.Fatalf("state changed after rejected page: %+v", state.Pdf)
	}
}

func TestHubSetPageWithoutManifest(t *testing.T) {
	hub, _ := newMemoryHub(t)

	_, _, err := hub.SetPage(context.Background(), "room-empty", 2)
	if !errors.Is(err, ErrNoManifest) || ErrorCode(err) != ErrCodeNoManifest {
		t.Fatalf("expected no_manifest, got %v", err)
	}
}

func TestHubFetchStateUnknownRoom(t *testing.T) {
	hub, _ := newMemoryHub(t)

	roomID, state, source := hub.FetchState(context.Background(), "")
	if roomID != board.DefaultRoom {
		t.Fatalf("expected default room, got %q", roomID)
	}
	if source != SourceNone {
		t.Fatalf("expected none source, got %s", source)
	}
	if state.Strokes == nil || len(state.Strokes) != 0 || state.Pdf != nil {
		t.Fatalf("expected empty state, got %+v", state)
	}
}

func TestHubFetchStatePrefersDurable(t *testing.T) {
	st := memory.New()
	hub := NewHub(st, nil, Options{})
	ctx := context.Background()

	if _, err := hub.Publish(ctx, "room-x", board.StrokeStart{Stroke: stroke("local")}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	durable := board.Reducer{}.Replay(board.StrokeStart{Stroke: stroke("remote")})
	if err := st.Save(ctx, "room-x", durable); err != nil {
		t.Fatalf("save: %v", err)
	}

	_, state, source := hub.FetchState(ctx, "room-x")
	if source != SourceDurable {
		t.Fatalf("expected durable, got %s", source)
	}
	if ids := state.StrokeIDs(); len(ids) != 1 || ids[0] != "remote" {
		t.Fatalf("expected durable strokes, got %v", ids)
	}
}

func TestHubFetchStateFallsBackToCache(t *testing.T) {
	fs := &failingStore{}
	hub := NewHub(fs, nil, Options{})
	ctx := context.Background()

	if _, err := hub.Publish(ctx, "room-y", board.StrokeStart{Stroke: stroke("s1")}); err != nil {
		t.Fatalf("publish should not fail on store errors: %v", err)
	}

	_, state, source := hub.FetchState(ctx, "room-y")
	if source != SourceCache {
		t.Fatalf("expected cache, got %s", source)
	}
	if ids := state.StrokeIDs(); len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("unexpected strokes %v", ids)
	}
}

func TestHubPublishSurvivesFailingPersister(t *testing.T) {
	fs := &failingStore{}
	p := NewPersister(fs, 1, 100*time.Millisecond, nil)
	p.Start()
	hub := NewHub(fs, p, Options{})

	sink, _, _ := subscribe(t, hub, "room-z")
	mustNotification(t, sink, NotifyInitState)

	ack, err := hub.Publish(context.Background(), "room-z", board.StrokeStart{Stroke: stroke("s1")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ack.Delivered != 1 {
		t.Fatalf("expected delivery, got %d", ack.Delivered)
	}
	mustNotification(t, sink, NotifyEvent)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, saves := fs.counts(); saves == 0 {
		t.Fatal("expected a save attempt")
	}
	if hub.Stats().Persist.Failed == 0 {
		t.Fatal("expected failure to be counted")
	}
}

func TestHubColdRoomHydratesFromDurable(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first := NewHub(st, NewPersister(st, 1, time.Second, nil), Options{})
	first.persister.Start()
	for _, ev := range []board.Event{
		board.StrokeStart{Stroke: stroke("s1", board.Point{X: 1, Y: 1})},
		board.StrokeStart{Stroke: stroke("s2", board.Point{X: 2, Y: 2})},
	} {
		if _, err := first.Publish(ctx, "course-7", ev); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	flush(t, first)

	second := NewHub(st, nil, Options{})
	if _, err := second.Publish(ctx, "?courseId=7", board.Undo{StrokeID: "s1"}); err != nil {
		t.Fatalf("publish on second hub: %v", err)
	}
	state, ok := second.Cache().Peek("course-7")
	if !ok {
		t.Fatal("second hub should hold the room")
	}
	if ids := state.StrokeIDs(); len(ids) != 1 || ids[0] != "s2" {
		t.Fatalf("expected hydrated state minus undo, got %v", ids)
	}
}

func TestHubPublishRejectsInvalidEvents(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	cases := []board.Event{
		nil,
		board.StrokeStart{Stroke: board.Stroke{}},
		board.Undo{},
		board.SetPage{Page: 0},
	}
	for _, ev := range cases {
		_, err := hub.Publish(ctx, "room-v", ev)
		if ErrorCode(err) != ErrCodeInvalidEvent {
			t.Fatalf("expected invalid_event for %#v, got %v", ev, err)
		}
	}
	if hub.Cache().Warm("room-v") {
		t.Fatal("rejected events must not touch the cache")
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub, _ := newMemoryHub(t)

	ack, err := hub.Publish(context.Background(), "room-quiet", board.Clear{})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ack.Delivered != 0 || ack.RoomID != "room-quiet" {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	sink, roomID, handle := subscribe(t, hub, "room-u")
	mustNotification(t, sink, NotifyInitState)

	hub.Unsubscribe(roomID, handle)
	hub.Unsubscribe(roomID, handle)

	if _, err := hub.Publish(ctx, "room-u", board.Clear{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	mustNoNotification(t, sink)
}

func TestHubRoomsAreIsolated(t *testing.T) {
	hub, _ := newMemoryHub(t)
	ctx := context.Background()

	a, _, _ := subscribe(t, hub, "room-1")
	b, _, _ := subscribe(t, hub, "room-2")
	mustNotification(t, a, NotifyInitState)
	mustNotification(t, b, NotifyInitState)

	if _, err := hub.Publish(ctx, "room-1", board.StrokeStart{Stroke: stroke("s1")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	mustNotification(t, a, NotifyEvent)
	mustNoNotification(t, b)
}

func TestHubSetPageOrderedAfterInFlightSave(t *testing.T) {
	st := &slowStore{Store: memory.New(), delay: 100 * time.Millisecond}
	p := NewPersister(st, 1, time.Second, nil)
	p.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Close(ctx)
	})
	hub := NewHub(st, p, Options{})
	ctx := context.Background()

	if _, err := hub.Publish(ctx, "room-slow", board.PdfSet{Manifest: board.PdfManifest{SourceReference: "doc1", CurrentPage: 1}}); err != nil {
		t.Fatalf("publish pdf-set: %v", err)
	}
	// Let the worker pick up the pdf-set save.
	time.Sleep(10 * time.Millisecond)

	if _, _, err := hub.SetPage(ctx, "room-slow", 3); err != nil {
		t.Fatalf("set page: %v", err)
	}

	_, state, source := hub.FetchState(ctx, "room-slow")
	if source != SourceDurable {
		t.Fatalf("expected durable source, got %s", source)
	}
	if state.Pdf == nil || state.Pdf.CurrentPage != 3 {
		t.Fatalf("fetched manifest %+v, want page 3", state.Pdf)
	}

	flush(t, hub)
	stored, err := st.Load(ctx, "room-slow")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Pdf == nil || stored.Pdf.CurrentPage != 3 {
		t.Fatalf("stored manifest %+v, want page 3", stored.Pdf)
	}
}

func TestHubConcurrentPublishesAllReachStore(t *testing.T) {
	hub, st := newMemoryHub(t)
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i)
			if _, err := hub.Publish(ctx, "room-race", board.StrokeStart{Stroke: stroke(id)}); err != nil {
				t.Errorf("publish %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()
	flush(t, hub)

	stored, err := st.Load(ctx, "room-race")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(stored.Strokes); got != writers {
		t.Fatalf("stored %d strokes, want %d", got, writers)
	}
}

func TestHubSubscribeWithSmallestSinkBuffer(t *testing.T) {
	hub, _ := newMemoryHub(t)

	sink := NewChanSink(1)
	if _, _, err := hub.Subscribe(context.Background(), "room-tiny", sink); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	mustNotification(t, sink, NotifyConnected)
	mustNotification(t, sink, NotifyInitState)
}
