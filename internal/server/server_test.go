package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterm/internal/api"
	"chatterm/internal/session"
	"chatterm/internal/socket"
	"chatterm/internal/state"
	"chatterm/pkg/chat"
)

type testEnv struct {
	srv      *httptest.Server
	wsURL    string
	sessions *session.Store
	client   *api.Client
}

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	db, err := Connect(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)

	srv := httptest.NewServer(New(db).Handler())
	t.Cleanup(srv.Close)

	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.toml"))
	return &testEnv{
		srv:      srv,
		wsURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		sessions: sessions,
		client:   api.New(srv.URL, sessions),
	}
}

func (e *testEnv) signup(t *testing.T, username string) {
	t.Helper()
	_, err := e.client.Signup(context.Background(), username, "secret123")
	require.NoError(t, err)
}

func TestServer_SignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	sess, err := env.client.Signup(context.Background(), "alice", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	_, err = env.client.Signup(context.Background(), "alice", "other")
	assert.True(t, api.IsStatus(err, http.StatusConflict), "duplicate signup must 409")

	_, err = env.client.Login(context.Background(), "alice", "wrong")
	assert.True(t, api.IsStatus(err, http.StatusUnauthorized))

	sess, err = env.client.Login(context.Background(), "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
}

func TestServer_InitialStateHasDefaultChannels(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")

	st, err := env.client.FetchInitialState(context.Background())
	require.NoError(t, err)

	require.Len(t, st.Channels, 2)
	assert.Equal(t, "general", st.Channels[0].Name)
	assert.False(t, st.Channels[0].Removable)
	assert.Equal(t, "random", st.Channels[1].Name)
	assert.Empty(t, st.Messages)
}

func TestServer_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	// No session at all: the gateway sends no header, the server 401s,
	// and since there is no session to clear the error surfaces as
	// ErrUnauthorized all the same.
	_, err := env.client.FetchInitialState(context.Background())
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestServer_ChannelLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	ch, err := env.client.CreateChannel(ctx, "team-x")
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.True(t, ch.Removable)

	// Duplicate names are rejected case-insensitively.
	_, err = env.client.CreateChannel(ctx, "TEAM-X")
	require.Error(t, err)
	assert.EqualError(t, err, "name must be unique")

	_, err = env.client.CreateChannel(ctx, "ab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 to 20 characters")

	renamed, err := env.client.RenameChannel(ctx, ch.ID, "team-y")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, renamed.ID)
	assert.Equal(t, "team-y", renamed.Name)

	require.NoError(t, env.client.DeleteChannel(ctx, ch.ID))

	st, err := env.client.FetchInitialState(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Channels, 2, "only defaults remain")
}

func TestServer_DefaultChannelsProtected(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	st, err := env.client.FetchInitialState(ctx)
	require.NoError(t, err)
	general := st.Channels[0]

	err = env.client.DeleteChannel(ctx, general.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be removed")

	_, err = env.client.RenameChannel(ctx, general.ID, "hijacked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be renamed")
}

func TestServer_SocketRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	m := socket.NewManager(env.wsURL, env.sessions, socket.DefaultBackoff())
	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, socket.ErrMissingCredential)

	// With a garbage token the server refuses the upgrade.
	require.NoError(t, env.sessions.Set("garbage", "alice"))
	err = m.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

// wireSocket funnels push events into the store the way the TUI does.
func wireSocket(m *socket.Manager, store *state.Store) {
	m.Subscribe(chat.EventNewMessage, func(p json.RawMessage) {
		var msg chat.Message
		if json.Unmarshal(p, &msg) == nil {
			store.Dispatch(state.MessageAdded{Message: msg})
		}
	})
	m.Subscribe(chat.EventNewChannel, func(p json.RawMessage) {
		var ch chat.Channel
		if json.Unmarshal(p, &ch) == nil {
			store.Dispatch(state.ChannelCreated{Channel: ch})
		}
	})
	m.Subscribe(chat.EventRenameChannel, func(p json.RawMessage) {
		var ch chat.Channel
		if json.Unmarshal(p, &ch) == nil {
			store.Dispatch(state.ChannelRenamed{Channel: ch})
		}
	})
	m.Subscribe(chat.EventRemoveChannel, func(p json.RawMessage) {
		var rm chat.RemoveChannelPayload
		if json.Unmarshal(p, &rm) == nil {
			store.Dispatch(state.ChannelRemoved{ID: rm.ID})
		}
	})
}

// The reconciliation path end to end: a send is confirmed over REST and
// echoed over the push channel, and exactly one copy lands in state.
func TestServer_SendMessageReconciliation(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	store := state.NewStore()
	defer store.Close()

	m := socket.NewManager(env.wsURL, env.sessions, socket.DefaultBackoff())
	wireSocket(m, store)
	require.NoError(t, m.Connect(ctx))
	defer m.Disconnect()

	initial, err := env.client.FetchInitialState(ctx)
	require.NoError(t, err)
	store.Dispatch(state.InitialLoaded{Channels: initial.Channels, Messages: initial.Messages})

	generalID := initial.Channels[0].ID

	sent, err := env.client.SendMessage(ctx, generalID, "hello", "alice")
	require.NoError(t, err)
	store.Dispatch(state.MessageAdded{Message: sent})

	// Wait for the push echo to arrive and be reduced too.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(store.Snapshot().MessagesByChannel[generalID]) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Give a buffered duplicate time to land if one were coming.
	time.Sleep(50 * time.Millisecond)

	msgs := store.Snapshot().MessagesByChannel[generalID]
	require.Len(t, msgs, 1, "REST confirmation plus push echo must collapse to one message")
	assert.Equal(t, sent.ID, msgs[0].ID)
	assert.Equal(t, "hello", msgs[0].Body)
}

func TestServer_ChannelEventsReachOtherClients(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "alice")
	ctx := context.Background()

	// A second user watches the push channel only.
	watcherSessions := session.NewStore(filepath.Join(t.TempDir(), "session.toml"))
	watcherClient := api.New(env.srv.URL, watcherSessions)
	_, err := watcherClient.Signup(ctx, "bob", "secret123")
	require.NoError(t, err)

	store := state.NewStore()
	defer store.Close()

	m := socket.NewManager(env.wsURL, watcherSessions, socket.DefaultBackoff())
	wireSocket(m, store)
	require.NoError(t, m.Connect(ctx))
	defer m.Disconnect()

	initial, err := watcherClient.FetchInitialState(ctx)
	require.NoError(t, err)
	store.Dispatch(state.InitialLoaded{Channels: initial.Channels, Messages: initial.Messages})

	ch, err := env.client.CreateChannel(ctx, "team-x")
	require.NoError(t, err)

	waitForState(t, store, func(s state.State) bool {
		_, ok := s.Channel(ch.ID)
		return ok
	}, "newChannel push never arrived")

	_, err = env.client.RenameChannel(ctx, ch.ID, "team-y")
	require.NoError(t, err)

	waitForState(t, store, func(s state.State) bool {
		got, ok := s.Channel(ch.ID)
		return ok && got.Name == "team-y"
	}, "renameChannel push never arrived")

	require.NoError(t, env.client.DeleteChannel(ctx, ch.ID))

	waitForState(t, store, func(s state.State) bool {
		_, ok := s.Channel(ch.ID)
		return !ok
	}, "removeChannel push never arrived")
}

func waitForState(t *testing.T, store *state.Store, cond func(state.State) bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(store.Snapshot()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
