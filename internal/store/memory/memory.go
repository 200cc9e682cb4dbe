package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/store"
)

// Store keeps encoded snapshots in process memory.
// Values are stored encoded so callers never share slices with the store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load returns the snapshot for a room or store.ErrNotFound.
func (s *Store) Load(ctx context.Context, roomID string) (board.RoomState, error) {
	if err := ctx.Err(); err != nil {
		return board.RoomState{}, err
	}

	s.mu.RLock()
	data, ok := s.data[roomID]
	s.mu.RUnlock()
	if !ok {
		return board.RoomState{}, store.ErrNotFound
	}
	return store.Unmarshal(data)
}

// Save overwrites the snapshot for a room.
func (s *Store) Save(ctx context.Context, roomID string, state board.RoomState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := store.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[roomID] = data
	s.mu.Unlock()
	return nil
}

// Rooms lists stored room ids in sorted order.
func (s *Store) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

var _ store.SnapshotStore = (*Store)(nil)
