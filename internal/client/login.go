package client

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// loginModel is the credential form. Tab toggles between login and
// signup mode, up/down move between fields, enter submits.
type loginModel struct {
	username textinput.Model
	password textinput.Model
	focused  int
	signup   bool
	busy     bool
	errText  string
}

func newLoginModel() loginModel {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 32
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 64
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return loginModel{username: username, password: password}
}

func (m loginModel) Update(msg tea.Msg) (loginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authFailedMsg:
		m.busy = false
		m.errText = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab":
			m.signup = !m.signup
			return m, nil
		case "up", "down", "shift+tab":
			m.focused = (m.focused + 1) % 2
			if m.focused == 0 {
				m.username.Focus()
				m.password.Blur()
			} else {
				m.username.Blur()
				m.password.Focus()
			}
			return m, nil
		case "enter":
			username := strings.TrimSpace(m.username.Value())
			password := m.password.Value()
			if username == "" || password == "" {
				m.errText = "username and password are required"
				return m, nil
			}
			m.busy = true
			m.errText = ""
			return m, submitAuthMsg{username: username, password: password, signup: m.signup}.cmd()
		}
	}

	var cmd tea.Cmd
	if m.focused == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

// submitAuthMsg asks the app model to run the auth command; the form
// does not hold the API client itself.
type submitAuthMsg struct {
	username string
	password string
	signup   bool
}

func (s submitAuthMsg) cmd() tea.Cmd {
	return func() tea.Msg { return s }
}

func (m loginModel) View() string {
	var b strings.Builder

	mode := "Log in"
	hint := "tab: switch to sign up"
	if m.signup {
		mode = "Sign up"
		hint = "tab: switch to log in"
	}

	b.WriteString(titleStyle.Render("chatterm — "+mode) + "\n\n")
	b.WriteString(m.username.View() + "\n")
	b.WriteString(m.password.View() + "\n\n")

	if m.busy {
		b.WriteString(hintStyle.Render("authenticating...") + "\n")
	} else if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText) + "\n")
	}

	b.WriteString(hintStyle.Render(hint+" · enter: submit · ctrl+c: quit") + "\n")
	return b.String()
}
