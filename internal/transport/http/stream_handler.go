package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/proto"
)

const sseEvent = "message"

// Stream holds an SSE subscription open, or answers with a single polling
// acknowledgement when the serving host cannot sustain one.
// GET /api/whiteboard/stream
func (h *boardHandlers) Stream(c *gin.Context) {
	roomID := h.room(c, "")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	if h.degraded.match(c.Request) {
		h.log.Info().Str("room", roomID).Str("host", c.Request.Host).Msg("streaming unavailable on host, using polling mode")
		h.pollingAck(c, roomID)
		return
	}

	sink := core.NewChanSink(h.sinkBuffer)
	defer sink.Close()

	ctx := c.Request.Context()
	roomID, handle, err := h.hub.Subscribe(ctx, roomID, sink)
	if err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Msg("subscribe failed, using polling mode")
		h.pollingAck(c, roomID)
		return
	}
	defer h.hub.Unsubscribe(roomID, handle)

	keepAlive := time.NewTicker(h.keepAlive)
	defer keepAlive.Stop()

	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		select {
		case n := <-sink.Notifications():
			c.SSEvent(sseEvent, outboundFromNotification(n, proto.ModeStream, 0))
			return true
		case <-keepAlive.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-sink.Done():
			h.log.Debug().Str("room", roomID).Msg("sse sink closed by registry")
			return false
		case <-ctx.Done():
			return false
		}
	})
}

func (h *boardHandlers) pollingAck(c *gin.Context, roomID string) {
	c.SSEvent(sseEvent, proto.Connected{
		Type:           proto.MessageConnected,
		RoomID:         roomID,
		Timestamp:      time.Now().UnixMilli(),
		Mode:           proto.ModePolling,
		PollIntervalMs: h.pollInterval.Milliseconds(),
		Protocol:       proto.ProtocolVersion,
	})
	c.Writer.Flush()
}
