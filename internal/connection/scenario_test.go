package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/chatstream/internal/bus"
	"github.com/rickgao/chatstream/internal/message"
	"github.com/rickgao/chatstream/internal/transport"
)

// chatServer answers the first connection's message with a greeting, then
// closes it; later connections are held open.
type chatServer struct {
	*httptest.Server

	mu       sync.Mutex
	queries  []string
	received []string
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	s := &chatServer{}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.queries = append(s.queries, r.URL.RawQuery)
		n := len(s.queries)
		s.mu.Unlock()

		if n > 1 {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, string(data))
		s.mu.Unlock()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"msg":"hello"}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		// Wait for the client's close reply.
		conn.SetReadDeadline(time.Now().Add(time.Second))
		conn.ReadMessage()
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) snapshot() (queries, received []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...), append([]string(nil), s.received...)
}

func TestScenario_SendReceiveAndReconnect(t *testing.T) {
	server := newChatServer(t)
	url, err := transport.EndpointURL(server.URL+"/chat", "42")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "ws://"))

	b := bus.New(nil)
	col := &collector{}
	b.Subscribe(col)

	cfg := Config{
		HeartbeatPeriod: time.Hour,
		ReconnectPeriod: 50 * time.Millisecond,
		UptimeLogPeriod: time.Hour,
	}
	m := NewManager(cfg, transport.NewDialer(transport.DefaultConfig(), nil), b, nil)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Connect(url))
	require.Eventually(t, func() bool { return m.State() == StateOpen }, 2*time.Second, 5*time.Millisecond)

	payload := `{"msg":"hi","type":"all"}`
	require.NoError(t, m.SendMessage([]byte(payload)))

	require.Eventually(t, func() bool { return len(col.messages()) >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, message.Broadcast{Text: "hello"}, col.messages()[0])

	// The server closes the first connection; the manager comes back on its own.
	require.Eventually(t, func() bool {
		queries, _ := server.snapshot()
		return len(queries) >= 2 && m.State() == StateOpen
	}, 3*time.Second, 10*time.Millisecond)

	queries, received := server.snapshot()
	assert.Equal(t, []string{payload}, received, "payload written verbatim")
	for _, q := range queries {
		assert.Equal(t, "id=42", q)
	}

	stats := m.Stats()
	assert.False(t, stats.ReconnectInFlight)
	assert.True(t, stats.HeartbeatActive)
	assert.GreaterOrEqual(t, stats.ConnectAttempts, uint64(2))
	assert.False(t, col.isCompleted())

	require.NoError(t, m.Close())
	require.Eventually(t, col.isCompleted, time.Second, 5*time.Millisecond)
}

func TestScenario_UnreachableEndpointKeepsRetrying(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	b := bus.New(nil)
	col := &collector{}
	b.Subscribe(col)

	cfg := Config{HeartbeatPeriod: time.Hour, ReconnectPeriod: 20 * time.Millisecond}
	m := NewManager(cfg, transport.NewDialer(transport.DefaultConfig(), nil), b, nil)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { m.Close() })

	require.NoError(t, m.Connect(url))

	require.Eventually(t, func() bool {
		return m.Stats().ConnectAttempts >= 4
	}, 3*time.Second, 10*time.Millisecond)

	stats := m.Stats()
	assert.True(t, stats.ReconnectInFlight)
	assert.NotEqual(t, StateOpen, stats.State)
	assert.NotEmpty(t, col.errors(), "dial failures surface as stream errors")
	assert.False(t, col.isCompleted())
}
