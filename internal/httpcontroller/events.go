package httpcontroller

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeWait = 5 * time.Second

// Hub fans detection events out to websocket subscribers. Slow or broken
// connections are dropped rather than allowed to stall the broadcast.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The event stream is read-only telemetry; origin checks stay
			// with the deployment's reverse proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) HandleWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	// Subscribers never send application data; the read loop only exists
	// to notice the close.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Broadcast sends v as one JSON message to every subscriber.
func (h *Hub) Broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		getLogger().Error("failed to encode event", "error", err)
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(conn)
		}
	}
}

// SubscriberCount returns the number of live connections.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	_, present := h.conns[conn]
	delete(h.conns, conn)
	h.mu.Unlock()
	if present {
		_ = conn.Close()
	}
}
