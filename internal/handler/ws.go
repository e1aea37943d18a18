package handler

import (
	"net/http"

	"github.com/clinilab/labtrail/internal/middleware"
	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/clinilab/labtrail/internal/realtime"
	"github.com/gin-gonic/gin"
)

type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Subscribe 把当前登录用户升级为 websocket 连接, 新通知到达时收到
// {"notificationId": N} 事件。
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if actor.UserID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: missing user claim"})
		return
	}
	userID := *actor.UserID

	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "user_id", userID, "error", err.Error())
		return
	}
	h.hub.Register(userID, conn)

	// 读循环只用于感知断开
	go func() {
		defer func() {
			h.hub.Unregister(userID, conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
