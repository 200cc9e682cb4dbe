package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// SinkHandle identifies a registration within a room.
type SinkHandle string

type closer interface {
	Close()
}

// Registry maps normalized room ids to the sinks connected to this process.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[SinkHandle]Sink
	log   *zerolog.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Registry{
		rooms: make(map[string]map[SinkHandle]Sink),
		log:   logger,
	}
}

// Register adds a sink to a room. Registering the same sink twice returns the same handle.
func (r *Registry) Register(roomID string, sink Sink) SinkHandle {
	handle := SinkHandle(sink.ID())

	r.mu.Lock()
	defer r.mu.Unlock()

	sinks, ok := r.rooms[roomID]
	if !ok {
		sinks = make(map[SinkHandle]Sink)
		r.rooms[roomID] = sinks
	}
	sinks[handle] = sink
	return handle
}

// Unregister removes a sink. It is a no-op if the sink or room is already gone.
func (r *Registry) Unregister(roomID string, handle SinkHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sinks, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := sinks[handle]; !exists {
		return false
	}
	delete(sinks, handle)
	if len(sinks) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// Fanout delivers n to every sink in the room and returns how many accepted it.
// A sink that fails is removed and closed; delivery to the rest continues.
// Zero sinks is not an error: viewers may be attached to another process.
func (r *Registry) Fanout(roomID string, n *Notification) int {
	r.mu.RLock()
	sinks := make([]Sink, 0, len(r.rooms[roomID]))
	for _, s := range r.rooms[roomID] {
		sinks = append(sinks, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range sinks {
		if err := s.Deliver(n); err != nil {
			r.prune(roomID, s, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (r *Registry) prune(roomID string, s Sink, cause error) {
	if r.Unregister(roomID, SinkHandle(s.ID())) {
		r.log.Warn().Err(cause).Str("room", roomID).Str("sink", s.ID()).Msg("pruned sink after delivery failure")
	}
	if c, ok := s.(closer); ok {
		c.Close()
	}
}

// Count returns the number of sinks registered for a room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

// Rooms returns the number of rooms with at least one sink.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
