package Controllers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/table-points/services"
)

func TestLiveLeaderboardSocket(t *testing.T) {
	s := newTestServer(t)
	table := s.createTable(t, 1)
	s.deps.Notifier.Subscribe(s.deps.Hub)

	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() map[string]interface{} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	snapshot := read()
	assert.Equal(t, services.EventLeaderboard, snapshot["event"])
	require.Len(t, snapshot["data"], 1)

	require.Eventually(t, func() bool { return s.deps.Hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.award(t, table.QRCode, 9)
	update := read()
	assert.Equal(t, services.EventPointsUpdate, update["event"])
	data := update["data"].(map[string]interface{})
	assert.Equal(t, float64(9), data["table"].(map[string]interface{})["points"])
}

func TestLiveRejectsForeignOrigin(t *testing.T) {
	s := newTestServer(t)
	s.deps.AllowedOrigin = "https://tavoli.example.com"
	srv := httptest.NewServer(rebuildRouter(s))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard"
	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
