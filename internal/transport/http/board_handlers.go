package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/config"
	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/proto"
	"github.com/vovakirdan/boardsync/internal/rtc"
)

// boardHandlers serves the whiteboard REST and SSE endpoints.
type boardHandlers struct {
	hub          *core.Hub
	authz        auth.Authorizer
	engine       rtc.Engine
	defaultRoom  string
	sinkBuffer   int
	pollInterval time.Duration
	keepAlive    time.Duration
	degraded     hostMatcher
	log          *zerolog.Logger
}

func newBoardHandlers(hub *core.Hub, authz auth.Authorizer, engine rtc.Engine, cfg *config.Config, logger *zerolog.Logger) *boardHandlers {
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &boardHandlers{
		hub:          hub,
		authz:        authz,
		engine:       engine,
		defaultRoom:  cfg.DefaultRoom,
		sinkBuffer:   cfg.SinkBuffer,
		pollInterval: cfg.PollInterval,
		keepAlive:    keepAlive,
		degraded:     newHostMatcher(cfg.BufferedHosts),
		log:          logger,
	}
}

// room picks the room from the body, then the query string, then the configured default.
func (h *boardHandlers) room(c *gin.Context, fromBody string) string {
	raw := strings.TrimSpace(fromBody)
	if raw == "" {
		raw = strings.TrimSpace(c.Query("roomId"))
	}
	if raw == "" {
		raw = h.defaultRoom
	}
	return board.NormalizeRoomID(raw)
}

// Publish accepts one event for a room.
// POST /api/whiteboard/events
func (h *boardHandlers) Publish(c *gin.Context) {
	var req proto.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid publish request")
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	ev, err := proto.DecodeEvent(req.Event)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: core.ErrCodeInvalidEvent})
		return
	}

	if err := h.authz.Authorize(identityFrom(c), ev.Kind()); err != nil {
		c.JSON(http.StatusForbidden, errorBody{Error: err.Error(), Code: core.ErrCodeForbidden})
		return
	}

	ack, err := h.hub.Publish(c.Request.Context(), h.room(c, req.RoomID), ev)
	if err != nil {
		c.JSON(statusFor(err), errorBody{Error: err.Error(), Code: codeFor(err)})
		return
	}

	c.JSON(http.StatusOK, proto.PublishResponse{OK: true, RoomID: ack.RoomID, Delivered: ack.Delivered})
}

// State returns the full room state, preferring the durable store.
// GET /api/whiteboard/state
func (h *boardHandlers) State(c *gin.Context) {
	roomID, state, source := h.hub.FetchState(c.Request.Context(), h.room(c, ""))
	if state.Strokes == nil {
		state.Strokes = []board.Stroke{}
	}
	c.JSON(http.StatusOK, proto.StateResponse{
		OK:     true,
		RoomID: roomID,
		State:  state,
		Source: string(source),
	})
}

// Page moves the room's PDF to another page.
// POST /api/whiteboard/page
func (h *boardHandlers) Page(c *gin.Context) {
	var req proto.PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: core.ErrInvalidPage.Error(), Code: core.ErrCodeInvalidPage})
		return
	}

	if err := h.authz.Authorize(identityFrom(c), board.KindSetPage); err != nil {
		c.JSON(http.StatusForbidden, errorBody{Error: err.Error(), Code: core.ErrCodeForbidden})
		return
	}

	_, manifest, err := h.hub.SetPage(c.Request.Context(), h.room(c, req.RoomID), req.Page)
	if err != nil {
		c.JSON(statusFor(err), errorBody{Error: err.Error(), Code: codeFor(err)})
		return
	}

	c.JSON(http.StatusOK, proto.PageResponse{OK: true, Pdf: &manifest})
}

// RTC issues join credentials for the media room paired with a board.
// GET /api/whiteboard/rtc
func (h *boardHandlers) RTC(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusNotFound, errorBody{Error: "realtime media is not configured"})
		return
	}

	id := identityFrom(c)
	name := id.Name
	if name == "" {
		name = id.Subject
	}

	info, err := h.engine.JoinInfo(c.Request.Context(), h.room(c, ""), id.Subject, name)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to generate rtc join info")
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, info)
}
