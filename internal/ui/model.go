package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inbox/internal/chat"
	"inbox/internal/content"
	"inbox/internal/models"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	widgetWidth  = 48
	widgetHeight = 16

	alertEmpty        = "Please type a message first."
	alertDisconnected = "Not connected. Your message was not sent."
)

// Inbox is the controller the UI drives. *chat.Inbox implements it.
type Inbox interface {
	Keystroke()
	Connect()
	Disconnect()
	Submit(text string) error
	Updates() <-chan chat.Snapshot
	Latest() chat.Snapshot
}

// WidgetVisible reports whether the floating widget is offered to id.
// Admins answer from the full page.
func WidgetVisible(id models.Identity) bool {
	return !id.IsAdmin
}

// Presentation resolves the mode actually shown to id.
func Presentation(mode chat.Mode, id models.Identity) chat.Mode {
	if mode == chat.ModeWidget && !WidgetVisible(id) {
		return chat.ModePage
	}
	return mode
}

type snapshotMsg chat.Snapshot

type Model struct {
	inbox    Inbox
	identity models.Identity
	mode     chat.Mode
	open     bool

	input    textinput.Model
	messages viewport.Model
	spinner  spinner.Model
	theme    theme

	snapshot chat.Snapshot
	alert    string
	width    int
	height   int
}

func New(inbox Inbox, identity models.Identity, mode chat.Mode) Model {
	input := textinput.New()
	input.Placeholder = "Type your message"
	input.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Ellipsis

	th := newTheme()
	input.PromptStyle = th.inputPrompt
	sp.Style = th.typing

	m := Model{
		inbox:    inbox,
		identity: identity,
		mode:     Presentation(mode, identity),
		input:    input,
		messages: viewport.New(0, 0),
		spinner:  sp,
		theme:    th,
		snapshot: inbox.Latest(),
	}
	if m.mode == chat.ModePage {
		m.open = true
		m.input.Focus()
	}
	m.renderMessages()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForSnapshot(m.inbox.Updates()),
	)
}

func waitForSnapshot(updates <-chan chat.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snapshot = chat.Snapshot(msg)
		m.renderMessages()
		cmds = append(cmds, waitForSnapshot(m.inbox.Updates()))
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderMessages()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if !m.open {
			switch msg.String() {
			case "ctrl+o", "enter":
				m.open = true
				m.input.Focus()
				m.resize()
				m.renderMessages()
				m.inbox.Connect()
			case "q", "esc":
				return m, tea.Quit
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case "esc":
			if m.mode == chat.ModeWidget {
				m.open = false
				m.alert = ""
				m.input.Blur()
				m.inbox.Disconnect()
				return m, tea.Batch(cmds...)
			}
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, tea.Batch(cmds...)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.messages, cmd = m.messages.Update(msg)
			cmds = append(cmds, cmd)
			return m, tea.Batch(cmds...)
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if m.input.Value() != before {
			m.alert = ""
			m.inbox.Keystroke()
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) submit() {
	err := m.inbox.Submit(m.input.Value())
	switch {
	case err == nil:
		m.input.SetValue("")
		m.alert = ""
	case errors.Is(err, content.ErrEmptyMessage):
		m.alert = alertEmpty
	case errors.Is(err, chat.ErrNotConnected):
		m.alert = alertDisconnected
	default:
		m.alert = err.Error()
	}
}

func (m *Model) resize() {
	width, height := m.width, m.height
	if m.mode == chat.ModeWidget {
		width = min(widgetWidth, width)
		height = min(widgetHeight, height)
	}
	// Border takes two columns and two rows; header, typing row, alert
	// and input take four more rows.
	m.messages.Width = max(10, width-2)
	m.messages.Height = max(3, height-6)
	m.input.Width = max(10, width-6)
}

// renderMessages refreshes the list and keeps the newest message in view.
func (m *Model) renderMessages() {
	lines := make([]string, 0, len(m.snapshot.Messages))
	for _, msg := range m.snapshot.Messages {
		style := m.theme.name
		if msg.IsAdmin || msg.Name == chat.SeedName {
			style = m.theme.adminName
		}
		line := style.Render(content.Sanitize(msg.Name)) + ": " + m.theme.body.Render(content.Sanitize(msg.Body))
		if m.messages.Width > 0 {
			line = lipgloss.NewStyle().Width(m.messages.Width).Render(line)
		}
		lines = append(lines, line)
	}
	m.messages.SetContent(strings.Join(lines, "\n"))
	m.messages.GotoBottom()
}

func (m Model) View() string {
	if !m.open {
		return m.theme.launcher.Render("Chat with us") + "\n" +
			m.theme.helpText.Render("ctrl+o open · q quit")
	}

	state := m.snapshot.Conn.String()
	header := m.theme.header.Render(fmt.Sprintf("Inbox · %s", m.identity.Name)) +
		m.theme.status[state].Render("● "+state)

	typing := ""
	if m.snapshot.RemoteTyping() {
		typing = m.theme.typing.Render(typingLabel(m.snapshot.Typers)) + m.spinner.View()
	}

	alert := ""
	if m.alert != "" {
		alert = m.theme.alert.Render(m.alert)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.messages.View(),
		typing,
		alert,
		m.input.View(),
	)

	if m.mode == chat.ModeWidget {
		return m.theme.widget.Render(body) + "\n" + m.theme.helpText.Render("esc close")
	}
	return m.theme.panel.Render(body)
}

func typingLabel(names []string) string {
	if len(names) == 1 {
		return names[0] + " is typing"
	}
	return strings.Join(names, ", ") + " are typing"
}

// Run shows the inbox until the user quits or ctx is done.
func Run(ctx context.Context, inbox Inbox, identity models.Identity, mode chat.Mode) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if Presentation(mode, identity) == chat.ModePage {
		opts = append(opts, tea.WithAltScreen())
	}

	p := tea.NewProgram(New(inbox, identity, mode), opts...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
