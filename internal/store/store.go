package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vovakirdan/boardsync/internal/board"
)

// ErrNotFound is returned by Load when no snapshot exists for a room.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore persists room snapshots so any process can recover them.
// Implementations must be safe for concurrent use. Writes are last-writer-wins.
type SnapshotStore interface {
	// Load returns the stored snapshot or ErrNotFound.
	Load(ctx context.Context, roomID string) (board.RoomState, error)

	// Save overwrites the snapshot for the room.
	Save(ctx context.Context, roomID string, state board.RoomState) error

	// Close releases the underlying connection.
	Close() error
}

// Marshal encodes a snapshot for storage.
func Marshal(state board.RoomState) ([]byte, error) {
	if state.Strokes == nil {
		state.Strokes = []board.Stroke{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a stored snapshot.
func Unmarshal(data []byte) (board.RoomState, error) {
	state := board.NewRoomState()
	if err := json.Unmarshal(data, &state); err != nil {
		return board.RoomState{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if state.Strokes == nil {
		state.Strokes = []board.Stroke{}
	}
	return state, nil
}
