package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/boardsync/internal/board"
)

func TestCacheGetOrInitCreatesEmptyRoom(t *testing.T) {
	c := NewCache(board.Reducer{})
	if c.Warm("room-1") {
		t.Fatal("room should start cold")
	}
	state := c.GetOrInit("room-1")
	if state.Strokes == nil || len(state.Strokes) != 0 {
		t.Fatalf("expected empty stroke list, got %#v", state.Strokes)
	}
	if !c.Warm("room-1") || c.Len() != 1 {
		t.Fatal("room should be warm after GetOrInit")
	}
}

func TestCacheApplyStampsAndIsolates(t *testing.T) {
	c := NewCache(board.Reducer{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	c.now = func() time.Time { return fixed }

	got := c.Apply("room-1", board.StrokeStart{Stroke: stroke("s1", board.Point{X: 1, Y: 1})})
	if !got.UpdatedAt.Equal(fixed) || got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("unexpected updatedAt %v", got.UpdatedAt)
	}

	got.Strokes[0].Points[0].X = 99
	again, _ := c.Peek("room-1")
	if again.Strokes[0].Points[0].X != 1 {
		t.Fatal("returned state must not alias the cache")
	}
}

func TestCacheSeedOnlyWhenCold(t *testing.T) {
	c := NewCache(board.Reducer{})
	seed := board.Reducer{}.Replay(board.StrokeStart{Stroke: stroke("seeded")})

	if !c.Seed("room-1", seed) {
		t.Fatal("seed into cold room should succeed")
	}
	if c.Seed("room-1", board.NewRoomState()) {
		t.Fatal("seed into warm room should be ignored")
	}
	state, ok := c.Peek("room-1")
	if !ok || len(state.Strokes) != 1 || state.Strokes[0].ID != "seeded" {
		t.Fatalf("unexpected state %+v", state)
	}
}

func TestCachePeekCold(t *testing.T) {
	c := NewCache(board.Reducer{})
	if _, ok := c.Peek("room-1"); ok {
		t.Fatal("peek must not create rooms")
	}
	if c.Len() != 0 {
		t.Fatalf("expected no rooms, got %d", c.Len())
	}
}
