package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	first := dial(t, server)
	second := dial(t, server)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(NewDeleteEvent("SN-42"))

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readJSON(t, conn)
		assert.Equal(t, EventDelete, msg["type"])
		assert.Equal(t, "SN-42", msg["serial_no"])
	}
}

func TestHub_RelaysClientMessagesToOthers(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	sender := dial(t, server)
	receiver := dial(t, server)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	payload := `{"serial_no":"SN-7","part_no":"P-1"}`
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(payload)))

	msg := readJSON(t, receiver)
	assert.Equal(t, "SN-7", msg["serial_no"])

	// The sender must not receive its own relayed message.
	sender.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := sender.ReadMessage()
	assert.Error(t, err)
}

func TestHub_DisconnectedClientIsRemoved(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(hub.HandleUpgrade))
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
