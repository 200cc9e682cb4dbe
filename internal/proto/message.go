package proto

import (
	"encoding/json"

	"github.com/vovakirdan/boardsync/internal/board"
)

// Inbound is the envelope for messages a WebSocket client sends.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypePublish = "publish"
	InboundTypePing    = "ping"

	MessageConnected = "connected"
	MessageInitState = "init-state"
	MessageAck       = "ack"
	MessagePong      = "pong"
	MessageError     = "error"

	ModeStream  = "stream"
	ModePolling = "polling"

	SourceDurable = "durable"
	SourceCache   = "cache"
	SourceNone    = "none"
)

// Connected is always the first message of a subscription.
type Connected struct {
	Type           string `json:"type"`
	RoomID         string `json:"roomId"`
	Timestamp      int64  `json:"timestamp"`
	Mode           string `json:"mode"`
	PollIntervalMs int64  `json:"pollIntervalMs,omitempty"`
	Protocol       int    `json:"protocol"`
}

// InitState carries the full snapshot right after Connected.
type InitState struct {
	Type    string             `json:"type"`
	RoomID  string             `json:"roomId"`
	Strokes []board.Stroke     `json:"strokes"`
	Pdf     *board.PdfManifest `json:"pdf"`
}

// Delta is a live event fanned out to subscribers.
type Delta struct {
	EventData
	RoomID string `json:"roomId"`
}

// StreamMessage decodes any message a subscriber may receive.
type StreamMessage struct {
	EventData
	RoomID         string             `json:"roomId,omitempty"`
	Timestamp      int64              `json:"timestamp,omitempty"`
	Mode           string             `json:"mode,omitempty"`
	PollIntervalMs int64              `json:"pollIntervalMs,omitempty"`
	Strokes        []board.Stroke     `json:"strokes,omitempty"`
	Pdf            *board.PdfManifest `json:"pdf,omitempty"`
	OK             bool               `json:"ok,omitempty"`
	Error          *Error             `json:"error,omitempty"`
}

// Snapshot rebuilds the room state carried by an init-state message.
func (m StreamMessage) Snapshot() board.RoomState {
	s := board.NewRoomState()
	for _, st := range m.Strokes {
		s.Strokes = append(s.Strokes, st.Clone())
	}
	if m.Pdf != nil {
		pdf := *m.Pdf
		s.Pdf = &pdf
	}
	return s
}

// PublishRequest is the body of a publish call.
type PublishRequest struct {
	RoomID string          `json:"roomId,omitempty"`
	Event  json.RawMessage `json:"event" binding:"required"`
}

// PublishResponse acknowledges a publish call.
type PublishResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Delivered int    `json:"delivered,omitempty"`
}

// StateResponse answers a fetch-state call.
type StateResponse struct {
	OK     bool            `json:"ok"`
	RoomID string          `json:"roomId"`
	State  board.RoomState `json:"state"`
	Source string          `json:"source"`
}

// PageRequest asks to move the room's PDF to another page.
type PageRequest struct {
	RoomID string `json:"roomId,omitempty"`
	Page   int    `json:"page"`
}

// PageResponse answers a page change.
type PageResponse struct {
	OK    bool               `json:"ok"`
	Error string             `json:"error,omitempty"`
	Pdf   *board.PdfManifest `json:"pdf,omitempty"`
}

// Ack answers a WebSocket publish.
type Ack struct {
	Type      string `json:"type"`
	OK        bool   `json:"ok"`
	RoomID    string `json:"roomId"`
	Delivered int    `json:"delivered"`
}

// Outbound wraps protocol level errors on a WebSocket.
type Outbound struct {
	Type  string `json:"type"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
