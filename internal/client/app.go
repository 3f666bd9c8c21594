// Package client is the terminal front end. It owns a bubbletea program
// whose Update loop is the only goroutine that touches application
// state: REST completions, push deliveries and connection transitions
// all arrive as messages and are reduced one at a time.
package client

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chatterm/internal/api"
	"chatterm/internal/session"
	"chatterm/internal/socket"
	"chatterm/internal/state"
)

type screen int

const (
	screenLogin screen = iota
	screenChat
)

// App is the root model. Chat data lives in st and only changes through
// state.Reduce; the screen models hold presentation concerns only.
type App struct {
	client   *api.Client
	sessions *session.Store
	sock     *socket.Manager

	// msgCh funnels callbacks from the socket manager's goroutines into
	// the Update loop.
	msgCh chan tea.Msg

	st     state.State
	screen screen
	login  loginModel
	chat   chatModel
}

func NewApp(client *api.Client, sessions *session.Store, sock *socket.Manager) *App {
	a := &App{
		client:   client,
		sessions: sessions,
		sock:     sock,
		msgCh:    make(chan tea.Msg, 64),
		st:       state.NewState(),
		login:    newLoginModel(),
	}
	wireSocket(sock, a.msgCh)
	// A cleared session (401 on any authed call) must also drop the live
	// connection so the reconnect loop can't retry a revoked credential.
	sessions.OnClear(sock.Disconnect)
	return a
}

// Run blocks until the user quits.
func (a *App) Run() error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{listen(a.msgCh), textinput.Blink}

	// A persisted session skips the login form entirely.
	if sess, ok := a.sessions.Get(); ok {
		a.screen = screenChat
		a.chat = newChatModel(sess.Username)
		cmds = append(cmds, loadInitialCmd(a.client), connectCmd(a.sock))
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case funnelMsg:
		_, cmd := a.Update(msg.inner)
		return a, tea.Batch(cmd, listen(a.msgCh))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			a.sock.Disconnect()
			return a, tea.Quit
		}

	case coreEventMsg:
		a.st = state.Reduce(a.st, msg.ev)
		return a, nil

	case coreEventsMsg:
		for _, ev := range msg.evs {
			a.st = state.Reduce(a.st, ev)
		}
		return a, nil

	case submitAuthMsg:
		return a, authCmd(a.client, msg.username, msg.password, msg.signup)

	case loggedInMsg:
		a.screen = screenChat
		a.chat = newChatModel(msg.username)
		a.st = state.NewState()
		return a, tea.Batch(loadInitialCmd(a.client), connectCmd(a.sock))

	case sessionExpiredMsg:
		a.sock.Disconnect()
		a.screen = screenLogin
		a.login = newLoginModel()
		a.login.errText = "session expired, please log in again"
		a.st = state.NewState()
		return a, nil

	case sendIntentMsg:
		ch, ok := a.st.CurrentChannel()
		if !ok {
			return a, nil
		}
		a.st = state.Reduce(a.st, state.SendStarted{})
		username := a.chat.username
		return a, sendMessageCmd(a.client, ch.ID, msg.body, username)

	case createChannelIntentMsg:
		a.st = state.Reduce(a.st, state.ChannelOpStarted{})
		return a, createChannelCmd(a.client, msg.name)

	case renameChannelIntentMsg:
		a.st = state.Reduce(a.st, state.ChannelOpStarted{})
		return a, renameChannelCmd(a.client, msg.id, msg.name)

	case deleteChannelIntentMsg:
		a.st = state.Reduce(a.st, state.ChannelOpStarted{})
		return a, deleteChannelCmd(a.client, msg.id)

	case switchChannelIntentMsg:
		a.st = state.Reduce(a.st, state.CurrentChannelSet{ID: msg.id})
		a.st = state.Reduce(a.st, state.ErrorCleared{})
		return a, nil
	}

	var cmd tea.Cmd
	switch a.screen {
	case screenLogin:
		a.login, cmd = a.login.Update(msg)
	case screenChat:
		a.chat, cmd = a.chat.Update(msg, a.st)
	}
	return a, cmd
}

func (a *App) View() string {
	switch a.screen {
	case screenChat:
		if !a.st.Loaded {
			return titleStyle.Render("chatterm") + "\n\n" + hintStyle.Render("loading...") + "\n"
		}
		return a.chat.View(a.st)
	default:
		return a.login.View()
	}
}
