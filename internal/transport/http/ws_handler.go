package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/config"
	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/proto"
)

// maxInboundBytes leaves room for an inline pdf-set source.
const maxInboundBytes = 1 << 20

// WSHandler upgrades HTTP connections to a room subscription that also accepts publishes.
type WSHandler struct {
	hub         *core.Hub
	authz       auth.Authorizer
	defaultRoom string
	sinkBuffer  int
	rateLimit   int
	pollEvery   time.Duration
	degraded    hostMatcher
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authz auth.Authorizer, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:         hub,
		authz:       authz,
		defaultRoom: cfg.DefaultRoom,
		sinkBuffer:  cfg.SinkBuffer,
		rateLimit:   cfg.WSRateLimit,
		pollEvery:   cfg.PollInterval,
		degraded:    newHostMatcher(cfg.BufferedHosts),
		log:         logger,
	}
}

// Handle serves GET /ws?roomId=.
func (h *WSHandler) Handle(c *gin.Context) {
	raw := c.Query("roomId")
	if raw == "" {
		raw = h.defaultRoom
	}
	identity := identityFrom(c)

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(maxInboundBytes)

	if h.degraded.match(c.Request) {
		roomID := board.NormalizeRoomID(raw)
		_ = wsjson.Write(c.Request.Context(), conn, proto.Connected{
			Type:           proto.MessageConnected,
			RoomID:         roomID,
			Timestamp:      time.Now().UnixMilli(),
			Mode:           proto.ModePolling,
			PollIntervalMs: h.pollEvery.Milliseconds(),
			Protocol:       proto.ProtocolVersion,
		})
		conn.Close(websocket.StatusNormalClosure, "polling mode")
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sink := core.NewChanSink(h.sinkBuffer)
	defer sink.Close()

	roomID, handle, err := h.hub.Subscribe(ctx, raw, sink)
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Msg("ws subscribe failed")
		conn.Close(websocket.StatusTryAgainLater, "subscribe failed")
		return
	}
	defer h.hub.Unsubscribe(roomID, handle)

	limiter := newPublishLimiter(h.rateLimit, nil)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, roomID, identity, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sink)
	}()

	err = <-errCh
	cancel()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("room", roomID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, roomID string, identity auth.Identity, limiter *publishLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		reply := h.handleInbound(ctx, roomID, identity, limiter, inbound)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return err
		}
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, roomID string, identity auth.Identity, limiter *publishLimiter, inbound proto.Inbound) any {
	switch inbound.Type {
	case proto.InboundTypePing:
		return proto.Outbound{Type: proto.MessagePong}
	case proto.InboundTypePublish:
		if !limiter.allow() {
			return errorOutbound(core.ErrCodeRateLimited, "rate limit exceeded")
		}
		var req proto.PublishRequest
		if err := json.Unmarshal(inbound.Data, &req); err != nil {
			return errorOutbound(core.ErrCodeBadRequest, "invalid publish payload")
		}
		ev, err := proto.DecodeEvent(req.Event)
		if err != nil {
			return errorOutbound(core.ErrCodeInvalidEvent, err.Error())
		}
		if err := h.authz.Authorize(identity, ev.Kind()); err != nil {
			return errorOutbound(core.ErrCodeForbidden, err.Error())
		}

		target := roomID
		if req.RoomID != "" {
			target = board.NormalizeRoomID(req.RoomID)
		}
		ack, err := h.hub.Publish(ctx, target, ev)
		if err != nil {
			return errorOutbound(codeFor(err), err.Error())
		}
		return proto.Ack{Type: proto.MessageAck, OK: true, RoomID: ack.RoomID, Delivered: ack.Delivered}
	default:
		return errorOutbound("invalid_message", "unknown message type")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sink *core.ChanSink) error {
	for {
		select {
		case n := <-sink.Notifications():
			if err := wsjson.Write(ctx, conn, outboundFromNotification(n, proto.ModeStream, 0)); err != nil {
				h.log.Error().Err(err).Str("room", n.RoomID).Msg("write ws notification")
				return err
			}
		case <-sink.Done():
			return errors.New("subscriber too slow")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func errorOutbound(code, msg string) proto.Outbound {
	return proto.Outbound{Type: proto.MessageError, Error: &proto.Error{Code: code, Msg: msg}}
}
