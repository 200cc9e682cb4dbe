package http

import (
	"errors"
	"net/http"

	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/proto"
)

// errorBody is the failure shape of every JSON endpoint.
type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// outboundFromNotification maps a hub notification to its wire message.
func outboundFromNotification(n *core.Notification, mode string, pollInterval int64) any {
	switch n.Kind {
	case core.NotifyConnected:
		return proto.Connected{
			Type:           proto.MessageConnected,
			RoomID:         n.RoomID,
			Timestamp:      n.Timestamp.UnixMilli(),
			Mode:           mode,
			PollIntervalMs: pollInterval,
			Protocol:       proto.ProtocolVersion,
		}
	case core.NotifyInitState:
		pdf := n.State.Pdf
		return proto.InitState{
			Type:    proto.MessageInitState,
			RoomID:  n.RoomID,
			Strokes: nonNilStrokes(n.State.Strokes),
			Pdf:     pdf,
		}
	case core.NotifyEvent:
		return proto.Delta{
			EventData: proto.EventDataFrom(n.Event),
			RoomID:    n.RoomID,
		}
	default:
		return proto.Outbound{Type: proto.MessageError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown notification"}}
	}
}

func nonNilStrokes(s []board.Stroke) []board.Stroke {
	if s == nil {
		return []board.Stroke{}
	}
	return s
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch codeFor(err) {
	case core.ErrCodeBadRequest, core.ErrCodeInvalidEvent, core.ErrCodeInvalidPage:
		return http.StatusBadRequest
	case core.ErrCodeNoManifest:
		return http.StatusConflict
	case core.ErrCodeForbidden:
		return http.StatusForbidden
	case core.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// codeFor is the stable error code for a wire error message.
func codeFor(err error) string {
	switch {
	case errors.Is(err, board.ErrInvalidEvent):
		return core.ErrCodeInvalidEvent
	case errors.Is(err, auth.ErrForbidden):
		return core.ErrCodeForbidden
	}
	return core.ErrorCode(err)
}
