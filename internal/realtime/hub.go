// Package realtime 提供了动态流的 WebSocket 广播能力。
// AI 助教的延迟回复正是通过这里推送到前端，用户才能"看到"它稍后出现。
package realtime

import (
	"encoding/json"
	"sync"

	"bright-starts-go/pkg/log"

	"github.com/gorilla/websocket"
)

// Event 是广播给所有订阅连接的事件信封。
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub 维护所有活跃的动态流订阅连接。
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub 创建一个新的 Hub。
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// Register 注册一个新的订阅连接。
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	log.Infof("动态流订阅连接建立，当前连接数: %d", h.Len())
}

// Unregister 注销一个订阅连接并关闭它。
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Len 返回当前活跃连接数。
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast 将一个事件推送给所有订阅连接。写失败的连接直接剔除。
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		log.Errorf("序列化广播事件失败: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warnf("向订阅连接写入事件失败，剔除连接: %v", err)
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}
