package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store"
)

// Source says where a fetched snapshot came from.
type Source string

const (
	SourceDurable Source = "durable"
	SourceCache   Source = "cache"
	SourceNone    Source = "none"
)

// Options tunes a Hub.
type Options struct {
	Reducer     board.Reducer
	LoadTimeout time.Duration
	SaveTimeout time.Duration
	Logger      *zerolog.Logger
}

// Ack confirms an accepted publish.
type Ack struct {
	RoomID    string
	Delivered int
}

// Hub coordinates the registry, the cache and durable persistence.
// All mutations of one room run under that room's lock, so events for a
// room are applied and fanned out in arrival order.
type Hub struct {
	registry    *Registry
	cache       *Cache
	store       store.SnapshotStore
	persister   *Persister
	locks       *xsync.MapOf[string, *sync.Mutex]
	loadTimeout time.Duration
	saveTimeout time.Duration
	log         *zerolog.Logger
	now         func() time.Time
}

// NewHub creates a hub. persister may be nil, in which case publishes are
// not mirrored to the durable store.
func NewHub(st store.SnapshotStore, persister *Persister, opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 2 * time.Second
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	return &Hub{
		registry:    NewRegistry(logger),
		cache:       NewCache(opts.Reducer),
		store:       st,
		persister:   persister,
		locks:       xsync.NewMapOf[string, *sync.Mutex](),
		loadTimeout: opts.LoadTimeout,
		saveTimeout: opts.SaveTimeout,
		log:         logger,
		now:         time.Now,
	}
}

// Registry exposes the channel registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Cache exposes the room state cache.
func (h *Hub) Cache() *Cache { return h.cache }

func (h *Hub) lock(roomID string) func() {
	mu, _ := h.locks.LoadOrCompute(roomID, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// hydrate seeds a cold room from the durable store. Callers hold the room lock.
func (h *Hub) hydrate(ctx context.Context, roomID string) {
	if h.cache.Warm(roomID) || h.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.loadTimeout)
	defer cancel()

	state, err := h.store.Load(ctx, roomID)
	switch {
	case err == nil:
		h.cache.Seed(roomID, state)
		h.log.Debug().Str("room", roomID).Int("strokes", len(state.Strokes)).Msg("hydrated room from durable store")
	case errors.Is(err, store.ErrNotFound):
		h.cache.Seed(roomID, board.NewRoomState())
	default:
		h.log.Warn().Err(err).Str("room", roomID).Msg("hydrate room failed, starting from local state")
	}
}

// Subscribe registers a sink and pushes the connected message followed by the
// snapshot before any later delta can reach it.
func (h *Hub) Subscribe(ctx context.Context, rawRoom string, sink Sink) (string, SinkHandle, error) {
	roomID := board.NormalizeRoomID(rawRoom)

	unlock := h.lock(roomID)
	defer unlock()

	h.hydrate(ctx, roomID)

	handle := h.registry.Register(roomID, sink)
	now := h.now()
	state := h.cache.GetOrInit(roomID)

	if err := sink.Deliver(&Notification{Kind: NotifyConnected, RoomID: roomID, Timestamp: now}); err != nil {
		h.registry.Unregister(roomID, handle)
		return roomID, "", fmt.Errorf("deliver connected: %w", err)
	}
	if err := sink.Deliver(&Notification{Kind: NotifyInitState, RoomID: roomID, Timestamp: now, State: state}); err != nil {
		h.registry.Unregister(roomID, handle)
		return roomID, "", fmt.Errorf("deliver init state: %w", err)
	}

	h.log.Debug().Str("room", roomID).Str("sink", sink.ID()).Int("sinks", h.registry.Count(roomID)).Msg("sink subscribed")
	return roomID, handle, nil
}

// Unsubscribe removes a sink. Safe if the room was emptied concurrently.
func (h *Hub) Unsubscribe(roomID string, handle SinkHandle) {
	if h.registry.Unregister(roomID, handle) {
		h.log.Debug().Str("room", roomID).Str("sink", string(handle)).Msg("sink unsubscribed")
	}
}

// Publish fans an event out to connected sinks, folds it into the cache and
// schedules a durable save. Only malformed events are reported as errors.
func (h *Hub) Publish(ctx context.Context, rawRoom string, ev board.Event) (Ack, error) {
	if ev == nil {
		return Ack{}, coreError(ErrCodeInvalidEvent, fmt.Errorf("%w: event is required", board.ErrInvalidEvent))
	}
	if err := ev.Validate(); err != nil {
		return Ack{}, coreError(ErrCodeInvalidEvent, err)
	}
	roomID := board.NormalizeRoomID(rawRoom)

	unlock := h.lock(roomID)
	h.hydrate(ctx, roomID)
	delivered := h.registry.Fanout(roomID, &Notification{
		Kind:      NotifyEvent,
		RoomID:    roomID,
		Timestamp: h.now(),
		Event:     ev,
	})
	state := h.cache.Apply(roomID, ev)
	// Enqueue under the room lock so queued snapshots follow apply order.
	if h.persister != nil {
		h.persister.Enqueue(roomID, state)
	}
	unlock()

	return Ack{RoomID: roomID, Delivered: delivered}, nil
}

// FetchState prefers the durable snapshot and falls back to this process's
// cache only when the durable load fails.
func (h *Hub) FetchState(ctx context.Context, rawRoom string) (string, board.RoomState, Source) {
	roomID := board.NormalizeRoomID(rawRoom)

	if h.store != nil {
		loadCtx, cancel := context.WithTimeout(ctx, h.loadTimeout)
		state, err := h.store.Load(loadCtx, roomID)
		cancel()
		if err == nil {
			h.cache.Seed(roomID, state)
			return roomID, state, SourceDurable
		}
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn().Err(err).Str("room", roomID).Msg("durable load failed, falling back to cache")
		}
	}

	if state, ok := h.cache.Peek(roomID); ok {
		return roomID, state, SourceCache
	}
	return roomID, board.NewRoomState(), SourceNone
}

// SetPage moves the room's PDF to page, persists it and fans out a set-page event.
func (h *Hub) SetPage(ctx context.Context, rawRoom string, page int) (string, board.PdfManifest, error) {
	roomID := board.NormalizeRoomID(rawRoom)
	if page < 1 {
		return roomID, board.PdfManifest{}, coreError(ErrCodeInvalidPage, ErrInvalidPage)
	}
	ev := board.SetPage{Page: page}

	unlock := h.lock(roomID)
	h.hydrate(ctx, roomID)
	if current := h.cache.GetOrInit(roomID); current.Pdf == nil {
		unlock()
		return roomID, board.PdfManifest{}, coreError(ErrCodeNoManifest, ErrNoManifest)
	}
	state := h.cache.Apply(roomID, ev)
	h.registry.Fanout(roomID, &Notification{
		Kind:      NotifyEvent,
		RoomID:    roomID,
		Timestamp: h.now(),
		Event:     ev,
	})
	if h.persister == nil {
		h.saveLocked(ctx, roomID, state, page)
		unlock()
		return roomID, *state.Pdf, nil
	}
	h.persister.Enqueue(roomID, state)
	unlock()

	// The page change is durable before returning, so a fetch from any
	// process sees it.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.saveTimeout)
	defer cancel()
	if err := h.persister.FlushRoom(flushCtx, roomID); err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Int("page", page).Msg("persist page change did not complete")
	}
	return roomID, *state.Pdf, nil
}

func (h *Hub) saveLocked(ctx context.Context, roomID string, state board.RoomState, page int) {
	if h.store == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.saveTimeout)
	defer cancel()
	if err := h.store.Save(saveCtx, roomID, state); err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Int("page", page).Msg("persist page change failed")
	}
}

// Stats reports process-local counters.
type Stats struct {
	Rooms       int
	ActiveRooms int
	Persist     PersistStats
}

// Stats returns a snapshot of hub counters.
func (h *Hub) Stats() Stats {
	s := Stats{
		Rooms:       h.cache.Len(),
		ActiveRooms: h.registry.Rooms(),
	}
	if h.persister != nil {
		s.Persist = h.persister.Stats()
	}
	return s
}
