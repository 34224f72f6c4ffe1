package server

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
	"go.uber.org/zap/zaptest"
)

func startHub(t *testing.T, allowedOrigins []string) (*Hub, string) {
	t.Helper()
	hub := NewHub(allowedOrigins, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// setFilter sends a filter request and waits for the acknowledgement, which also
// guarantees the client is registered with the hub.
func setFilter(t *testing.T, conn *websocket.Conn, mapName string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(WSMessage{Type: MessageFilter, MapName: mapName}))
	ack := readMessage(t, conn)
	require.Equal(t, MessageFilter, ack.Type)
	require.Equal(t, mapName, ack.MapName)
}

func TestHubBroadcastsReports(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)
	setFilter(t, conn, "")

	r := newTestReport(t, "2fort")
	require.NoError(t, hub.Publish(context.Background(), r))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageRoundReport, msg.Type)
	assert.Equal(t, "2fort", msg.MapName)

	var data map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, r.ID.String(), data["id"])
	assert.Equal(t, "red", data["winner"])
}

func TestHubMapFilter(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)
	setFilter(t, conn, "well")

	require.NoError(t, hub.Publish(context.Background(), newTestReport(t, "2fort")))
	require.NoError(t, hub.Publish(context.Background(), newTestReport(t, "WELL")))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageRoundReport, msg.Type)
	assert.Equal(t, "WELL", msg.MapName)
}

func TestHubRejectsUnknownMessages(t *testing.T) {
	_, url := startHub(t, nil)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join_game"}`)))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
}

func TestHubOriginCheck(t *testing.T) {
	_, url := startHub(t, []string{"https://stats.example.org"})

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://stats.example.org")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHubPublishAfterShutdown(t *testing.T) {
	hub := NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	for i := 0; i < sendBufferSize+1; i++ {
		assert.NoError(t, hub.Publish(context.Background(), newTestReport(t, "2fort")))
	}
}
