package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/table-points/services"
	"github.com/yeremiapane/table-points/utils"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many messages a viewer may fall behind before it
	// is dropped.
	sendBuffer = 64
)

// Message -> envelope sent to every leaderboard viewer
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// Hub keeps the open leaderboard websockets and fans messages out to them.
// Each client has its own writer goroutine, so a stalled viewer never holds
// up the caller of Broadcast.
type Hub struct {
	clients map[*websocket.Conn]*client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

// Register -> start sending broadcasts to conn. After this call only the
// hub writes to conn.
func (h *Hub) Register(conn *websocket.Conn, remote string) {
	c := &client{conn: conn, remote: remote, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()

	go h.writeLoop(c)
	utils.InfoLogger.WithField("remote", remote).Debug("live client connected")
}

// Unregister -> forget conn and close it
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.remove(conn)
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client without waiting for the writes.
// A client whose queue is full is dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("marshal live message %s: %v", msg.Event, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, c := range h.clients {
		select {
		case c.send <- data:
		default:
			utils.ErrorLogger.WithField("remote", c.remote).Warn("drop live client: too far behind")
			h.remove(conn)
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithField("remote", c.remote).Warnf("drop live client: %v", err)
			h.Unregister(c.conn)
			return
		}
	}
}

// OnChange forwards committed table and points changes.
func (h *Hub) OnChange(_ context.Context, ev services.ChangeEvent) {
	h.Broadcast(Message{Event: ev.Type, Data: ev})
}

// BroadcastLeaderboard sends a full snapshot.
func (h *Hub) BroadcastLeaderboard(entries []services.LeaderboardEntry) {
	h.Broadcast(Message{Event: services.EventLeaderboard, Data: entries})
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.clients {
		h.remove(conn)
	}
}

// remove expects h.mutex to be held.
func (h *Hub) remove(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
	_ = conn.Close()
}
