package ws

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(logger.New(logger.Config{Level: "error", Output: io.Discard}))
	go hub.Run()

	engine := gin.New()
	engine.GET("/ws/:sessionId", hub.ServeWS)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return hub, server
}

func dial(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitForClients blocks until the hub has registered n connections, since
// the dialer can return before the registration lands.
func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.clients) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestSessionUpdateReachesSubscriber(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "sess-1")
	waitForClients(t, hub, 1)

	hub.SessionUpdated(models.ChatSession{ID: "sess-1", Name: "Tavern"})

	event := readEvent(t, conn)
	assert.Equal(t, EventSessionUpdated, event.Type)

	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sess-1", payload["id"])
	assert.Equal(t, "Tavern", payload["name"])
}

func TestSessionUpdateScopedToSession(t *testing.T) {
	hub, server := newTestHub(t)
	subscribed := dial(t, server, "sess-1")
	other := dial(t, server, "sess-2")
	waitForClients(t, hub, 2)

	hub.SessionUpdated(models.ChatSession{ID: "sess-1"})
	hub.SessionUpdated(models.ChatSession{ID: "sess-2"})

	// Each connection sees only its own session's event.
	event := readEvent(t, subscribed)
	payload := event.Payload.(map[string]any)
	assert.Equal(t, "sess-1", payload["id"])

	event = readEvent(t, other)
	payload = event.Payload.(map[string]any)
	assert.Equal(t, "sess-2", payload["id"])
}

func TestCharacterUpdateFansOutToAllSessions(t *testing.T) {
	hub, server := newTestHub(t)
	first := dial(t, server, "sess-1")
	second := dial(t, server, "sess-2")
	waitForClients(t, hub, 2)

	hub.CharacterUpdated(models.Character{ID: "char-a", Name: "Aria"})

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, EventCharacterUpdated, event.Type)
	}
}

func TestErrorEventCarriesMessage(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server, "sess-1")
	waitForClients(t, hub, 1)

	hub.Error("sess-1", "Failed to generate a response. The conversation was interrupted.")

	event := readEvent(t, conn)
	assert.Equal(t, EventError, event.Type)

	payload := event.Payload.(map[string]any)
	assert.Equal(t, "sess-1", payload["session_id"])
	assert.Contains(t, payload["message"], "interrupted")
}
