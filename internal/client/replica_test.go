package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/proto"
)

func initState(strokes ...board.Stroke) proto.StreamMessage {
	return proto.StreamMessage{
		EventData: proto.EventData{Type: proto.MessageInitState},
		Strokes:   strokes,
	}
}

func delta(ev board.Event) proto.StreamMessage {
	return proto.StreamMessage{EventData: proto.EventDataFrom(ev)}
}

func TestReplicaSecondInitStateReplaces(t *testing.T) {
	r := NewReplica(nil)
	require.False(t, r.Synced())

	require.NoError(t, r.Handle(initState(board.Stroke{ID: "a"}, board.Stroke{ID: "b"})))
	require.True(t, r.Synced())
	require.NoError(t, r.Handle(delta(board.StrokeStart{Stroke: board.Stroke{ID: "c"}})))
	assert.Equal(t, []string{"a", "b", "c"}, r.State().StrokeIDs())

	require.NoError(t, r.Handle(initState(board.Stroke{ID: "z"})))
	assert.Equal(t, []string{"z"}, r.State().StrokeIDs(), "snapshot replaces, never merges")
}

func TestReplicaConnectedAndErrors(t *testing.T) {
	r := NewReplica(nil)

	require.NoError(t, r.Handle(proto.StreamMessage{
		EventData:      proto.EventData{Type: proto.MessageConnected},
		RoomID:         "room-1",
		Mode:           proto.ModePolling,
		PollIntervalMs: 1500,
	}))
	mode, every := r.Mode()
	assert.Equal(t, proto.ModePolling, mode)
	assert.Equal(t, int64(1500), every.Milliseconds())

	err := r.Handle(proto.StreamMessage{
		EventData: proto.EventData{Type: proto.MessageError},
		Error:     &proto.Error{Code: "invalid_event", Msg: "nope"},
	})
	assert.True(t, errors.Is(err, ErrRemote))

	assert.Error(t, r.Handle(proto.StreamMessage{EventData: proto.EventData{Type: "bogus"}}))
	assert.NoError(t, r.Handle(proto.StreamMessage{EventData: proto.EventData{Type: proto.MessageAck}}))
}

func TestReplicaDrawsRemoteButNotLocalStrokes(t *testing.T) {
	canvas := NewCanvas(30, 30)
	r := NewReplica(canvas)
	r.MarkLocal("mine")

	r.Apply(board.StrokeStart{Stroke: board.Stroke{ID: "mine", Points: []board.Point{{X: 0, Y: 5}, {X: 30, Y: 5}}}})
	_, g, _, _ := canvas.Image().At(15, 5).RGBA()
	assert.Equal(t, uint32(0xffff), g, "own echo is not redrawn")

	r.Apply(board.StrokeStart{Stroke: board.Stroke{ID: "theirs", Points: []board.Point{{X: 0, Y: 20}}}})
	r.Apply(board.StrokeUpdate{StrokeID: "theirs", Points: []board.Point{{X: 0, Y: 20}, {X: 30, Y: 20}}, Append: true})
	_, g, _, _ = canvas.Image().At(15, 20).RGBA()
	assert.Less(t, g, uint32(0x8000), "remote segment lands on the committed surface")

	r.Apply(board.Undo{StrokeID: "theirs"})
	_, g, _, _ = canvas.Image().At(15, 20).RGBA()
	assert.Equal(t, uint32(0xffff), g, "undo repaints")
	assert.Equal(t, []string{"mine"}, r.State().StrokeIDs())
}

func TestMergeAppend(t *testing.T) {
	a := board.StrokeUpdate{StrokeID: "s", Points: []board.Point{{X: 1}, {X: 2}}, Append: true}
	b := board.StrokeUpdate{StrokeID: "s", Points: []board.Point{{X: 2}, {X: 3}}, Append: true, Final: true}

	merged, ok := mergeAppend(a, b)
	require.True(t, ok)
	u := merged.(board.StrokeUpdate)
	assert.Equal(t, []board.Point{{X: 1}, {X: 2}, {X: 3}}, u.Points)
	assert.True(t, u.Final)

	_, ok = mergeAppend(u, board.StrokeUpdate{StrokeID: "s", Append: true})
	assert.False(t, ok, "nothing merges after a final update")
	_, ok = mergeAppend(a, board.StrokeUpdate{StrokeID: "other", Append: true})
	assert.False(t, ok)
	_, ok = mergeAppend(a, board.Clear{})
	assert.False(t, ok)
}
