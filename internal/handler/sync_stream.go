package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"storesync/internal/service"
)

const streamWriteTimeout = 5 * time.Second

// SyncStreamHandler pushes audit entries for one tenant over a websocket as
// they are written.
type SyncStreamHandler struct {
	Hub            *service.AuditHub
	OriginPatterns []string
	Logger         *zap.Logger
}

func (h *SyncStreamHandler) Register(r *gin.Engine) {
	r.GET("/api/tenants/:id/sync/stream", h.stream)
}

// @Summary Live audit stream (websocket)
// @Tags sync
// @Param id path int true "tenant id"
// @Success 101
// @Router /api/tenants/{id}/sync/stream [get]
func (h *SyncStreamHandler) stream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "stream unavailable", nil)
		return
	}
	tenantID := tenantParam(c)
	if tenantID == 0 {
		Error(c, http.StatusBadRequest, "invalid tenant id", nil)
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns})
	if err != nil {
		h.logger().Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	entries, cancel := h.Hub.Subscribe(tenantID)
	defer cancel()

	// The client never sends; CloseRead surfaces its disconnect.
	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case entry, ok := <-entries:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "hub closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, entry)
			cancelWrite()
			if err != nil {
				h.logger().Debug("websocket write failed", zap.Uint64("tenant_id", tenantID), zap.Error(err))
				return
			}
		}
	}
}

func (h *SyncStreamHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
