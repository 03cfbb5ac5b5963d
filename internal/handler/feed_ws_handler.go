package handler

import (
	"net/http"

	"bright-starts-go/internal/realtime"
	"bright-starts-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var feedUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// FeedWsHandler 负责动态流的 WebSocket 订阅连接。
type FeedWsHandler struct {
	hub *realtime.Hub
}

// NewFeedWsHandler 创建一个新的 FeedWsHandler 实例。
func NewFeedWsHandler(hub *realtime.Hub) *FeedWsHandler {
	return &FeedWsHandler{hub: hub}
}

// Handle 将 HTTP 连接升级为 WebSocket 并注册到广播 Hub。
// 连接是只写的：服务端推送 post.created / comment.created 事件，
// 读循环仅用于感知客户端断开。
func (h *FeedWsHandler) Handle(c *gin.Context) {
	conn, err := feedUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("升级动态流 WebSocket 连接失败: %v", err)
		return
	}

	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
