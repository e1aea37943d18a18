package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/clinilab/labtrail/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 浏览器端由 JWT 鉴权, 不做 Origin 白名单
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event 是推送给已连接客户端的通知事件。
type Event struct {
	NotificationID int64 `json:"notificationId"`
}

// Hub 维护每个用户的 websocket 连接集合, 新通知产生时按用户广播。
// 推送是尽力而为: 写失败的连接直接移除。
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[int64]map[*websocket.Conn]struct{})}
}

func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[userID][conn] = struct{}{}
}

func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// ConnCount 返回某用户当前的连接数, 主要用于测试与诊断。
func (h *Hub) ConnCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Broadcast 将新通知事件写到该用户的所有连接。
func (h *Hub) Broadcast(userID int64, notificationID int64) {
	h.mu.RLock()
	targets := make([]*websocket.Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(Event{NotificationID: notificationID}); err != nil {
			logger.Debug("realtime: dropping broken websocket", "user_id", userID, "error", err.Error())
			h.Unregister(userID, conn)
			_ = conn.Close()
		}
	}
}
