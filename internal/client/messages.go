package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatterm/internal/api"
	"chatterm/internal/socket"
	"chatterm/internal/state"
	"chatterm/pkg/chat"
)

const requestDeadline = 15 * time.Second

// coreEventMsg delivers one reducer event into the bubbletea loop.
// Push deliveries, REST completions and status changes all become this,
// so the Update goroutine is the single event-application path.
type coreEventMsg struct {
	ev state.Event
}

// coreEventsMsg batches events produced by one completion, e.g. a
// confirmed send plus its pending-counter decrement.
type coreEventsMsg struct {
	evs []state.Event
}

// loggedInMsg flips the app from the login screen to the chat screen.
type loggedInMsg struct {
	username string
}

// authFailedMsg carries a login/signup failure back to the form.
type authFailedMsg struct {
	err error
}

// sessionExpiredMsg returns the app to the login screen after any 401.
type sessionExpiredMsg struct{}

// wireSocket registers the push-event subscriptions, funneling every
// delivery into msgCh as reducer events.
func wireSocket(m *socket.Manager, msgCh chan tea.Msg) {
	m.Subscribe(chat.EventNewMessage, func(p json.RawMessage) {
		var msg chat.Message
		if err := json.Unmarshal(p, &msg); err == nil {
			msgCh <- coreEventMsg{state.MessageAdded{Message: msg}}
		}
	})
	m.Subscribe(chat.EventNewChannel, func(p json.RawMessage) {
		var ch chat.Channel
		if err := json.Unmarshal(p, &ch); err == nil {
			msgCh <- coreEventMsg{state.ChannelCreated{Channel: ch}}
		}
	})
	m.Subscribe(chat.EventRenameChannel, func(p json.RawMessage) {
		var ch chat.Channel
		if err := json.Unmarshal(p, &ch); err == nil {
			msgCh <- coreEventMsg{state.ChannelRenamed{Channel: ch}}
		}
	})
	m.Subscribe(chat.EventRemoveChannel, func(p json.RawMessage) {
		var rm chat.RemoveChannelPayload
		if err := json.Unmarshal(p, &rm); err == nil {
			msgCh <- coreEventMsg{state.ChannelRemoved{ID: rm.ID}}
		}
	})
	m.Subscribe(chat.EventError, func(p json.RawMessage) {
		var text string
		if err := json.Unmarshal(p, &text); err == nil && text != "" {
			msgCh <- coreEventMsg{state.ErrorSignaled{Err: text}}
		}
	})

	m.OnStatus(func(s socket.Status) {
		msgCh <- coreEventMsg{state.StatusChanged{Status: mapStatus(s)}}
	})
	m.OnConnectionLost(func(err error) {
		msgCh <- coreEventMsg{state.ErrorSignaled{Err: err.Error()}}
	})
}

func mapStatus(s socket.Status) state.Status {
	switch s {
	case socket.Connecting:
		return state.StatusConnecting
	case socket.Connected:
		return state.StatusConnected
	default:
		return state.StatusDisconnected
	}
}

// funnelMsg wraps a message drained from msgCh so the app can tell a
// channel delivery apart from a command result and re-arm exactly one
// listener per delivery.
type funnelMsg struct {
	inner tea.Msg
}

// listen waits for the next funneled message. The returned command is
// re-issued each time a funnelMsg is handled, which is the bubbletea way
// of draining a long-lived source.
func listen(msgCh chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return funnelMsg{inner: <-msgCh}
	}
}

func authCmd(client *api.Client, username, password string, signup bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		var err error
		if signup {
			_, err = client.Signup(ctx, username, password)
		} else {
			_, err = client.Login(ctx, username, password)
		}
		if err != nil {
			return authFailedMsg{err: err}
		}
		return loggedInMsg{username: username}
	}
}

func loadInitialCmd(client *api.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		st, err := client.FetchInitialState(ctx)
		if err != nil {
			return initialLoadResult(err)
		}
		return coreEventMsg{state.InitialLoaded{Channels: st.Channels, Messages: st.Messages}}
	}
}

func initialLoadResult(err error) tea.Msg {
	if isUnauthorized(err) {
		return sessionExpiredMsg{}
	}
	return coreEventMsg{state.InitialLoadFailed{Err: err.Error()}}
}

func connectCmd(m *socket.Manager) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		if err := m.Connect(ctx); err != nil {
			return coreEventMsg{state.ErrorSignaled{Err: err.Error()}}
		}
		// Status transitions arrive through the OnStatus funnel.
		return nil
	}
}

func sendMessageCmd(client *api.Client, channelID, body, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		// Applied only on confirmation; a failed send never becomes a
		// ghost message.
		msg, err := client.SendMessage(ctx, channelID, body, username)
		if err != nil {
			return mutationFailure(err, state.SendFinished{})
		}
		return coreEventsMsg{[]state.Event{
			state.MessageAdded{Message: msg},
			state.SendFinished{},
		}}
	}
}

func createChannelCmd(client *api.Client, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		ch, err := client.CreateChannel(ctx, name)
		if err != nil {
			return mutationFailure(err, state.ChannelOpFinished{})
		}
		return coreEventsMsg{[]state.Event{
			state.ChannelCreated{Channel: ch, Local: true},
			state.ChannelOpFinished{},
		}}
	}
}

func renameChannelCmd(client *api.Client, id, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		ch, err := client.RenameChannel(ctx, id, name)
		if err != nil {
			return mutationFailure(err, state.ChannelOpFinished{})
		}
		return coreEventsMsg{[]state.Event{
			state.ChannelRenamed{Channel: ch},
			state.ChannelOpFinished{},
		}}
	}
}

func deleteChannelCmd(client *api.Client, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestDeadline)
		defer cancel()

		if err := client.DeleteChannel(ctx, id); err != nil {
			return mutationFailure(err, state.ChannelOpFinished{})
		}
		return coreEventsMsg{[]state.Event{
			state.ChannelRemoved{ID: id},
			state.ChannelOpFinished{},
		}}
	}
}

// mutationFailure turns a failed REST mutation into its reducer events.
// 401 additionally bounces the app back to the login screen; the
// session itself is already cleared by the gateway.
func mutationFailure(err error, done state.Event) tea.Msg {
	if isUnauthorized(err) {
		return sessionExpiredMsg{}
	}
	return coreEventsMsg{[]state.Event{
		state.ErrorSignaled{Err: err.Error()},
		done,
	}}
}

func isUnauthorized(err error) bool {
	return errors.Is(err, api.ErrUnauthorized)
}
