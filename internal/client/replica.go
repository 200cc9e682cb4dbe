package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/proto"
)

// ErrRemote wraps an error message received from the server.
var ErrRemote = errors.New("server error")

// Replica is a client's reconstruction of one room, folded with the same
// reducer the server uses.
type Replica struct {
	mu           sync.Mutex
	reducer      board.Reducer
	state        board.RoomState
	canvas       *Canvas
	local        map[string]struct{}
	roomID       string
	mode         string
	pollInterval time.Duration
	synced       bool
}

// NewReplica builds an empty replica. canvas may be nil.
func NewReplica(canvas *Canvas) *Replica {
	return &Replica{
		state:  board.NewRoomState(),
		canvas: canvas,
		local:  make(map[string]struct{}),
	}
}

// MarkLocal records a stroke drawn by this client. Echoes of it are folded
// into state but not drawn, since the recorder commits its own pixels.
func (r *Replica) MarkLocal(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[id] = struct{}{}
}

// Handle consumes one stream message.
func (r *Replica) Handle(msg proto.StreamMessage) error {
	switch msg.Type {
	case proto.MessageConnected:
		r.mu.Lock()
		r.roomID = msg.RoomID
		r.mode = msg.Mode
		r.pollInterval = time.Duration(msg.PollIntervalMs) * time.Millisecond
		r.mu.Unlock()
		return nil
	case proto.MessageInitState:
		r.Reset(msg.Snapshot())
		return nil
	case proto.MessageAck, proto.MessagePong:
		return nil
	case proto.MessageError:
		if msg.Error != nil {
			return fmt.Errorf("%w: %s: %s", ErrRemote, msg.Error.Code, msg.Error.Msg)
		}
		return ErrRemote
	}

	ev, err := msg.EventData.ToEvent()
	if err != nil {
		return err
	}
	r.Apply(ev)
	return nil
}

// Reset replaces the replica wholesale and repaints the committed surface.
func (r *Replica) Reset(state board.RoomState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state.Clone()
	if r.state.Strokes == nil {
		r.state.Strokes = []board.Stroke{}
	}
	r.synced = true
	if r.canvas != nil {
		r.canvas.Repaint(r.state)
	}
}

// Apply folds one live event into the replica.
func (r *Replica) Apply(ev board.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state
	r.state = r.reducer.Apply(r.state, ev)
	if r.canvas == nil {
		return
	}

	switch e := ev.(type) {
	case board.StrokeStart:
		if _, mine := r.local[e.Stroke.ID]; !mine {
			if s, ok := r.state.Stroke(e.Stroke.ID); ok {
				r.canvas.DrawCommitted(s, s.Points)
			}
		}
	case board.StrokeUpdate:
		if _, mine := r.local[e.StrokeID]; mine {
			return
		}
		s, ok := r.state.Stroke(e.StrokeID)
		if !ok {
			return
		}
		if e.Append {
			if old, existed := prev.Stroke(e.StrokeID); existed && len(old.Points) > 0 {
				// Join the new segment to the previously drawn tail.
				r.canvas.DrawCommitted(s, s.Points[len(old.Points)-1:])
				return
			}
		}
		r.canvas.DrawCommitted(s, s.Points)
	case board.Undo, board.Clear, board.ClearAll:
		r.canvas.Repaint(r.state)
	}
}

// State returns a copy of the reconstructed room.
func (r *Replica) State() board.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Synced reports whether a snapshot has been received.
func (r *Replica) Synced() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synced
}

// Mode returns the delivery mode the server announced and its poll interval.
func (r *Replica) Mode() (string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode, r.pollInterval
}
