package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/models"
	"github.com/yeremiapane/table-points/services"
)

func startHubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn, r.RemoteAddr)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastsChanges(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)
	first := dial(t, url)
	second := dial(t, url)
	waitForClients(t, hub, 2)

	table := models.Table{ID: 1, TableNumber: 1, QRCode: "TABLE_1", Points: 15}
	hub.OnChange(context.Background(), services.ChangeEvent{Type: services.EventPointsUpdate, Table: &table})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, services.EventPointsUpdate, msg["event"])
		data := msg["data"].(map[string]interface{})
		assert.Equal(t, float64(15), data["table"].(map[string]interface{})["points"])
	}
}

func TestHubLeaderboardSnapshot(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.BroadcastLeaderboard([]services.LeaderboardEntry{{Position: 1, Medal: "🥇", QRCode: "TABLE_3", Points: 40}})

	msg := readMessage(t, conn)
	assert.Equal(t, services.EventLeaderboard, msg["event"])
	entries := msg["data"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "TABLE_3", entries[0].(map[string]interface{})["qrCode"])
}

func TestHubForgetsClosedClients(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)

	hub.Broadcast(Message{Event: "noop"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestBroadcastDoesNotWaitForStalledClient(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)
	dial(t, url) // never reads
	waitForClients(t, hub, 1)

	payload := strings.Repeat("x", 512<<10)
	start := time.Now()
	for i := 0; i < 150; i++ {
		hub.Broadcast(Message{Event: "bulk", Data: payload})
	}
	assert.Less(t, time.Since(start), 2*time.Second)
	waitForClients(t, hub, 0)

	fresh := dial(t, url)
	waitForClients(t, hub, 1)
	hub.Broadcast(Message{Event: "after"})
	assert.Equal(t, "after", readMessage(t, fresh)["event"])
}
