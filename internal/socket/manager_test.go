package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterm/internal/session"
	"chatterm/pkg/chat"
)

var testUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// testBackoff keeps reconnection tests fast.
func testBackoff() Backoff {
	return Backoff{Initial: 10 * time.Millisecond, Max: 40 * time.Millisecond, MaxAttempts: 5}
}

func authedStore(t *testing.T) *session.Store {
	s := session.NewStore(filepath.Join(t.TempDir(), "session.toml"))
	require.NoError(t, s.Set("tok-123", "alice"))
	return s
}

// wsServer runs handler for every websocket upgrade and returns the
// ws:// URL to dial.
func wsServer(t *testing.T, handler func(conn *websocket.Conn, r *http.Request)) (*httptest.Server, string) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// statusRecorder collects deduplicated status transitions.
type statusRecorder struct {
	mu  sync.Mutex
	seq []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = append(r.seq, s)
}

func (r *statusRecorder) snapshot() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.seq...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestManager_ConnectWithoutCredential(t *testing.T) {
	dialed := false
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		dialed = true
		conn.Close()
	})

	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.toml"))
	m := NewManager(url, sessions, DefaultBackoff())

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, Disconnected, m.Status())
	assert.False(t, dialed, "must not touch the network without a credential")
}

func TestManager_ConnectCarriesBearerToken(t *testing.T) {
	authCh := make(chan string, 1)
	_, url := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		authCh <- r.Header.Get("Authorization")
		// Keep the connection open until the client disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(url, authedStore(t), testBackoff())
	rec := &statusRecorder{}
	m.OnStatus(rec.record)

	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	assert.Equal(t, "Bearer tok-123", <-authCh)
	assert.Equal(t, Connected, m.Status())
	assert.Equal(t, []Status{Connecting, Connected}, rec.snapshot())
}

func TestManager_ConnectRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	m := NewManager(url, authedStore(t), testBackoff())
	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, Disconnected, m.Status())
}

func TestManager_DispatchesSubscribedEvents(t *testing.T) {
	msg := chat.Message{ID: "m1", ChannelID: "c1", Username: "alice", Body: "hi", Timestamp: 100}
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		payload, _ := json.Marshal(msg)
		env, _ := json.Marshal(map[string]json.RawMessage{
			"event":   json.RawMessage(`"newMessage"`),
			"payload": payload,
		})
		_ = conn.WriteMessage(websocket.TextMessage, env)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(url, authedStore(t), testBackoff())

	got := make(chan chat.Message, 1)
	m.Subscribe(chat.EventNewMessage, func(payload json.RawMessage) {
		var in chat.Message
		require.NoError(t, json.Unmarshal(payload, &in))
		got <- in
	})

	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	select {
	case in := <-got:
		assert.Equal(t, msg, in)
	case <-time.After(2 * time.Second):
		t.Fatal("push event was not delivered")
	}
}

func TestManager_UnsubscribedHandlerNeverRuns(t *testing.T) {
	release := make(chan struct{})
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		<-release
		env := []byte(`{"event":"newChannel","payload":{"id":"c9","name":"ops","removable":true}}`)
		_ = conn.WriteMessage(websocket.TextMessage, env)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(url, authedStore(t), testBackoff())

	removedCalled := false
	removed := m.Subscribe(chat.EventNewChannel, func(json.RawMessage) { removedCalled = true })

	kept := make(chan struct{}, 1)
	m.Subscribe(chat.EventNewChannel, func(json.RawMessage) { kept <- struct{}{} })

	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	// Unsubscribe before the server emits anything; the delivery that
	// follows must reach only the surviving handler.
	m.Unsubscribe(removed)
	close(release)

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler was not invoked")
	}
	assert.False(t, removedCalled, "handler invoked after unsubscribe")
}

func TestManager_SubscribeWhileDisconnected(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"removeChannel","payload":{"id":"c3"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(url, authedStore(t), testBackoff())

	got := make(chan string, 1)
	m.Subscribe(chat.EventRemoveChannel, func(payload json.RawMessage) {
		var p chat.RemoveChannelPayload
		require.NoError(t, json.Unmarshal(payload, &p))
		got <- p.ID
	})

	// Subscription was made before any connection existed; it must fire
	// once connected.
	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	select {
	case id := <-got:
		assert.Equal(t, "c3", id)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription made while disconnected never took effect")
	}
}

func TestManager_DisconnectIsIdempotent(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(url, authedStore(t), testBackoff())
	require.NoError(t, m.Connect(context.Background()))

	m.Disconnect()
	m.Disconnect()
	assert.Equal(t, Disconnected, m.Status())
}

func TestManager_ReconnectsAfterDrop(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		if n == 1 {
			// First connection drops immediately.
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := NewManager(url, authedStore(t), testBackoff())
	rec := &statusRecorder{}
	m.OnStatus(rec.record)

	require.NoError(t, m.Connect(context.Background()))
	defer m.Disconnect()

	waitFor(t, func() bool {
		seq := rec.snapshot()
		return len(seq) > 0 && seq[len(seq)-1] == Connected && len(seq) >= 4
	}, "manager never reconnected")

	// Connected, Disconnected, Connecting, Connected — the drop and the
	// recovery, with no duplicate notifications.
	assert.Equal(t, []Status{Connecting, Connected, Disconnected, Connecting, Connected}, rec.snapshot())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, conns)
}

func TestManager_ReportsTerminalDisconnect(t *testing.T) {
	srv, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.Close()
	})

	m := NewManager(url, authedStore(t), Backoff{Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 3})

	lost := make(chan error, 1)
	m.OnConnectionLost(func(err error) { lost <- err })

	require.NoError(t, m.Connect(context.Background()))

	// Kill the server so every reconnection attempt fails.
	srv.CloseClientConnections()
	srv.Close()

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal disconnect was never reported")
	}
	assert.Equal(t, Disconnected, m.Status())
}

func TestManager_LogoutStopsReconnection(t *testing.T) {
	_, url := wsServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.Close()
	})

	sessions := authedStore(t)
	m := NewManager(url, sessions, Backoff{Initial: 20 * time.Millisecond, Max: 40 * time.Millisecond, MaxAttempts: 5})

	lost := make(chan error, 1)
	m.OnConnectionLost(func(err error) { lost <- err })

	require.NoError(t, m.Connect(context.Background()))

	// Session disappears while the manager is between attempts.
	require.NoError(t, sessions.Clear())

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, ErrMissingCredential)
	case <-time.After(2 * time.Second):
		t.Fatal("reconnection kept running without a credential")
	}
}
