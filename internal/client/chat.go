package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"chatterm/internal/state"
	"chatterm/internal/validate"
	"chatterm/internal/view"
)

// inputMode says what the text input currently collects.
type inputMode int

const (
	modeMessage inputMode = iota
	modeCreateChannel
	modeRenameChannel
	modeDeleteConfirm
)

// chatModel renders the channel list, the current conversation and a
// single input line whose meaning depends on the active mode. All chat
// data lives in the app's state; this model only holds UI concerns.
type chatModel struct {
	input    textinput.Model
	mode     inputMode
	username string
	width    int
	height   int
	formErr  string
}

func newChatModel(username string) chatModel {
	input := textinput.New()
	input.Placeholder = "message"
	input.CharLimit = 500
	input.Focus()
	return chatModel{input: input, username: username}
}

// Intent messages produced by the chat screen; the app model owns the
// API client and turns these into commands.
type (
	sendIntentMsg          struct{ body string }
	createChannelIntentMsg struct{ name string }
	renameChannelIntentMsg struct {
		id   string
		name string
	}
	deleteChannelIntentMsg struct{ id string }
	switchChannelIntentMsg struct{ id string }
)

func intent(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (m chatModel) Update(msg tea.Msg, st state.State) (chatModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.mode != modeMessage {
				m.resetInput(modeMessage, "message")
			}
			return m, nil
		case "tab":
			if m.mode == modeMessage {
				if id := nextChannelID(st, 1); id != "" {
					return m, intent(switchChannelIntentMsg{id: id})
				}
			}
			return m, nil
		case "shift+tab":
			if m.mode == modeMessage {
				if id := nextChannelID(st, -1); id != "" {
					return m, intent(switchChannelIntentMsg{id: id})
				}
			}
			return m, nil
		case "ctrl+n":
			m.resetInput(modeCreateChannel, "new channel name")
			return m, nil
		case "ctrl+r":
			if ch, ok := st.CurrentChannel(); ok && ch.Removable {
				m.resetInput(modeRenameChannel, "new name for #"+ch.Name)
			} else {
				m.formErr = "this channel cannot be renamed"
			}
			return m, nil
		case "ctrl+d":
			if ch, ok := st.CurrentChannel(); ok && ch.Removable {
				m.resetInput(modeDeleteConfirm, "type the channel name to delete #"+ch.Name)
			} else {
				m.formErr = "this channel cannot be removed"
			}
			return m, nil
		case "enter":
			return m.submit(st)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) resetInput(mode inputMode, placeholder string) {
	m.mode = mode
	m.formErr = ""
	m.input.Reset()
	m.input.Placeholder = placeholder
}

func (m chatModel) submit(st state.State) (chatModel, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())

	switch m.mode {
	case modeMessage:
		if err := validate.MessageBody(value); err != nil {
			return m, nil
		}
		if st.CurrentChannelID == "" {
			m.formErr = "no channel selected"
			return m, nil
		}
		m.input.Reset()
		return m, intent(sendIntentMsg{body: value})

	case modeCreateChannel:
		if err := validate.ChannelName(value, st.Channels, ""); err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.resetInput(modeMessage, "message")
		return m, intent(createChannelIntentMsg{name: value})

	case modeRenameChannel:
		ch, ok := st.CurrentChannel()
		if !ok {
			m.resetInput(modeMessage, "message")
			return m, nil
		}
		if err := validate.ChannelName(value, st.Channels, ch.ID); err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.resetInput(modeMessage, "message")
		return m, intent(renameChannelIntentMsg{id: ch.ID, name: value})

	case modeDeleteConfirm:
		ch, ok := st.CurrentChannel()
		if !ok {
			m.resetInput(modeMessage, "message")
			return m, nil
		}
		if !strings.EqualFold(value, ch.Name) {
			m.formErr = "name does not match, channel kept"
			return m, nil
		}
		m.resetInput(modeMessage, "message")
		return m, intent(deleteChannelIntentMsg{id: ch.ID})
	}
	return m, nil
}

// nextChannelID steps through the channel list relative to the current
// selection, wrapping at the ends.
func nextChannelID(st state.State, step int) string {
	if len(st.Channels) == 0 {
		return ""
	}
	idx := 0
	for i, ch := range st.Channels {
		if ch.ID == st.CurrentChannelID {
			idx = i
			break
		}
	}
	next := (idx + step + len(st.Channels)) % len(st.Channels)
	return st.Channels[next].ID
}

func (m chatModel) View(st state.State) string {
	var b strings.Builder

	b.WriteString(m.headerView(st) + "\n")
	b.WriteString(m.messagesView(st))
	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(m.statusView(st) + "\n")
	return b.String()
}

func (m chatModel) headerView(st state.State) string {
	parts := make([]string, 0, len(st.Channels))
	for _, ch := range view.ChannelList(st) {
		label := "#" + ch.Name
		if ch.ID == st.CurrentChannelID {
			parts = append(parts, currentChannelStyle.Render(label))
		} else {
			parts = append(parts, channelStyle.Render(label))
		}
	}
	return titleStyle.Render("chatterm") + "  " + strings.Join(parts, " ")
}

func (m chatModel) messagesView(st state.State) string {
	msgs := view.CurrentChannelMessages(st)
	if len(msgs) == 0 {
		return hintStyle.Render("no messages yet") + "\n"
	}

	// Show only what fits; the newest lines win.
	visible := msgs
	if m.height > 6 && len(msgs) > m.height-6 {
		visible = msgs[len(msgs)-(m.height-6):]
	}

	var b strings.Builder
	for _, msg := range visible {
		ts := time.UnixMilli(msg.Timestamp).Format("15:04")
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			timestampStyle.Render(ts),
			usernameStyle.Render(msg.Username+":"),
			msg.Body,
		))
	}
	return b.String()
}

func (m chatModel) statusView(st state.State) string {
	var b strings.Builder

	switch st.Status {
	case state.StatusConnected:
		b.WriteString(connectedStyle.Render("● live"))
	case state.StatusConnecting:
		b.WriteString(connectingStyle.Render("● connecting"))
	default:
		b.WriteString(disconnectedStyle.Render("● offline"))
	}

	if view.PendingActivity(st) {
		b.WriteString(hintStyle.Render("  sending..."))
	}
	if m.formErr != "" {
		b.WriteString("  " + errorStyle.Render(m.formErr))
	} else if errText := view.LastError(st); errText != "" {
		b.WriteString("  " + errorStyle.Render(errText))
	}

	switch m.mode {
	case modeMessage:
		b.WriteString("\n" + hintStyle.Render("tab: next channel · ctrl+n: new · ctrl+r: rename · ctrl+d: delete · ctrl+c: quit"))
	default:
		b.WriteString("\n" + hintStyle.Render("enter: confirm · esc: cancel"))
	}
	return b.String()
}
