package core

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/vovakirdan/boardsync/internal/board"
)

type cacheEntry struct {
	mu    sync.Mutex
	state board.RoomState
}

// Cache holds this process's canonical reconstruction of each room.
// It never reflects state held by other processes.
type Cache struct {
	reducer board.Reducer
	now     func() time.Time
	rooms   *xsync.MapOf[string, *cacheEntry]
}

// NewCache constructs an empty cache using the given reducer.
func NewCache(reducer board.Reducer) *Cache {
	return &Cache{
		reducer: reducer,
		now:     time.Now,
		rooms:   xsync.NewMapOf[string, *cacheEntry](),
	}
}

func (c *Cache) entry(roomID string) *cacheEntry {
	e, _ := c.rooms.LoadOrCompute(roomID, func() *cacheEntry {
		return &cacheEntry{state: board.NewRoomState()}
	})
	return e
}

// GetOrInit returns a copy of the room state, creating an empty room if needed.
func (c *Cache) GetOrInit(roomID string) board.RoomState {
	e := c.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Peek returns the room state only if this process holds it.
func (c *Cache) Peek(roomID string) (board.RoomState, bool) {
	e, ok := c.rooms.Load(roomID)
	if !ok {
		return board.RoomState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), true
}

// Warm reports whether the room is held in memory.
func (c *Cache) Warm(roomID string) bool {
	_, ok := c.rooms.Load(roomID)
	return ok
}

// Seed installs a state for a cold room. It returns false if the room was already warm.
func (c *Cache) Seed(roomID string, state board.RoomState) bool {
	seeded := false
	c.rooms.LoadOrCompute(roomID, func() *cacheEntry {
		seeded = true
		return &cacheEntry{state: state.Clone()}
	})
	return seeded
}

// Apply folds an event into the room and returns a copy of the new state.
func (c *Cache) Apply(roomID string, ev board.Event) board.RoomState {
	e := c.entry(roomID)
	e.mu.Lock()
	defer e.mu.Unlock()

	next := c.reducer.Apply(e.state, ev)
	next.UpdatedAt = c.now().UTC()
	e.state = next
	return next.Clone()
}

// Len returns the number of warm rooms.
func (c *Cache) Len() int {
	return c.rooms.Size()
}
