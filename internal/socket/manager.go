// Package socket owns the single persistent live-update connection.
//
// The manager is an explicitly owned resource handle: constructed once at
// application start, connected after login, torn down at logout. Only one
// underlying connection is ever open; connecting while connected tears
// the old one down first.
//
// gorilla/websocket has no built-in reconnection, so the manager runs its
// own loop with explicit parameters (1s initial delay, 5s cap, 5
// attempts) rather than relying on transport defaults. Exhaustion is
// reported as a terminal disconnect, never retried further.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatterm/internal/session"
)

// Status is the connection state machine:
// Disconnected -> Connecting -> Connected -> Disconnected.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrMissingCredential is returned by Connect when no session exists.
// No network operation is attempted.
var ErrMissingCredential = errors.New("not authenticated: log in before connecting")

// ErrConnectionLost reports that the reconnection budget was exhausted.
var ErrConnectionLost = errors.New("live connection lost")

// Handler receives the raw payload of one push event.
type Handler func(payload json.RawMessage)

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	event  string
	fn     Handler
	active bool
}

// Backoff are the reconnection parameters. Fixed policy per deployment;
// the zero value is not valid, use DefaultBackoff.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoff returns the standard policy: 1s initial delay, doubled
// per attempt and capped at 5s, at most 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 5 * time.Second, MaxAttempts: 5}
}

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Manager is the live-update channel manager.
type Manager struct {
	url      string
	sessions *session.Store
	dialer   *websocket.Dialer
	backoff  Backoff

	onStatus func(Status)
	onLost   func(error)

	// regMu guards the handler registry. Dispatch holds the read lock
	// while invoking handlers, so once Unsubscribe returns the handler
	// is guaranteed not to run again, even for buffered deliveries.
	regMu sync.RWMutex
	subs  map[string][]*Subscription

	mu     sync.Mutex
	conn   *websocket.Conn
	status Status
	// stop identifies the current connection lifecycle; closed on
	// explicit teardown so read and reconnect loops stand down.
	stop chan struct{}
}

// NewManager builds a manager for the given ws:// or wss:// endpoint.
// Nothing is dialed until Connect.
func NewManager(url string, sessions *session.Store, backoff Backoff) *Manager {
	return &Manager{
		url:      url,
		sessions: sessions,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		backoff: backoff,
		subs:    map[string][]*Subscription{},
	}
}

// OnStatus registers the status-change callback. Must be set before
// Connect; invoked once per transition, never with a repeated status.
func (m *Manager) OnStatus(fn func(Status)) { m.onStatus = fn }

// OnConnectionLost registers the terminal-disconnect callback, invoked
// after the reconnection budget is exhausted.
func (m *Manager) OnConnectionLost(fn func(error)) { m.onLost = fn }

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Connect establishes the connection, authenticating with the current
// session credential in the handshake. Fails immediately with
// ErrMissingCredential when no session exists. Any existing connection
// is torn down first.
func (m *Manager) Connect(ctx context.Context) error {
	sess, ok := m.sessions.Get()
	if !ok {
		return ErrMissingCredential
	}

	m.Disconnect()

	m.mu.Lock()
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()
	m.setStatus(Connecting)

	conn, err := m.dial(ctx, sess.Token)
	if err != nil {
		m.teardown(stop)
		m.setStatus(Disconnected)
		return err
	}

	m.mu.Lock()
	if m.stop != stop {
		// A concurrent Disconnect or Connect superseded us.
		m.mu.Unlock()
		conn.Close()
		return errors.New("connection superseded")
	}
	m.conn = conn
	m.mu.Unlock()
	m.setStatus(Connected)

	go m.readLoop(conn, stop)
	return nil
}

// Disconnect tears the connection down. Always legal and idempotent;
// pending reconnection attempts are abandoned.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.setStatus(Disconnected)
}

// Subscribe registers a handler for the named push event. Legal while
// disconnected; takes effect as soon as events flow.
func (m *Manager) Subscribe(event string, fn Handler) *Subscription {
	sub := &Subscription{event: event, fn: fn, active: true}
	m.regMu.Lock()
	m.subs[event] = append(m.subs[event], sub)
	m.regMu.Unlock()
	return sub
}

// Unsubscribe removes a handler. When Unsubscribe returns, the handler
// is not running and will never be invoked again, even if the transport
// had already buffered a delivery for it.
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	m.regMu.Lock()
	defer m.regMu.Unlock()

	sub.active = false
	list := m.subs[sub.event]
	for i, s := range list {
		if s == sub {
			m.subs[sub.event] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

func (m *Manager) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)

	conn, resp, err := m.dialer.DialContext(ctx, m.url, hdr)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connect: %w", err)
	}
	return conn, nil
}

func (m *Manager) readLoop(conn *websocket.Conn, stop chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		m.dispatch(data)
	}

	select {
	case <-stop:
		// Explicit teardown; Disconnect already set the status.
		return
	default:
	}

	m.mu.Lock()
	if m.stop != stop {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	m.setStatus(Disconnected)
	m.reconnect(stop)
}

// reconnect runs the bounded backoff loop after an unexpected drop.
func (m *Manager) reconnect(stop chan struct{}) {
	m.setStatus(Connecting)

	delay := m.backoff.Initial
	for attempt := 1; attempt <= m.backoff.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay *= 2
			if delay > m.backoff.Max {
				delay = m.backoff.Max
			}
		}
		select {
		case <-stop:
			return
		case <-time.After(delay):
		}

		// The credential is read fresh each attempt: a logout during the
		// gap must not be retried with a stale token.
		sess, ok := m.sessions.Get()
		if !ok {
			m.giveUp(stop, ErrMissingCredential)
			return
		}

		conn, err := m.dial(context.Background(), sess.Token)
		if err != nil {
			continue
		}

		m.mu.Lock()
		if m.stop != stop {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()
		m.setStatus(Connected)

		go m.readLoop(conn, stop)
		return
	}

	m.giveUp(stop, fmt.Errorf("%w after %d attempts", ErrConnectionLost, m.backoff.MaxAttempts))
}

func (m *Manager) giveUp(stop chan struct{}, err error) {
	m.teardown(stop)
	m.setStatus(Disconnected)
	if m.onLost != nil {
		m.onLost(err)
	}
}

// teardown clears the lifecycle if it is still the current one.
func (m *Manager) teardown(stop chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == stop {
		m.stop = nil
	}
}

func (m *Manager) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}

	m.regMu.RLock()
	defer m.regMu.RUnlock()
	for _, sub := range m.subs[env.Event] {
		if sub.active {
			sub.fn(env.Payload)
		}
	}
}

// setStatus records a transition and notifies, deduplicating repeats.
func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	fn := m.onStatus
	m.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}
