package ui

import (
	"testing"

	"inbox/internal/chat"
	"inbox/internal/content"
	"inbox/internal/models"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInbox struct {
	keystrokes  int
	connects    int
	disconnects int
	submitted   []string
	submitErr   error
	updates     chan chat.Snapshot
	latest      chat.Snapshot
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{
		updates: make(chan chat.Snapshot, 1),
		latest: chat.Snapshot{
			Messages: []models.ChatMessage{{Name: chat.SeedName, Body: chat.SeedBody}},
		},
	}
}

func (f *fakeInbox) Keystroke()  { f.keystrokes++ }
func (f *fakeInbox) Connect()    { f.connects++ }
func (f *fakeInbox) Disconnect() { f.disconnects++ }

func (f *fakeInbox) Submit(text string) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	if _, err := content.NormalizeBody(text); err != nil {
		return err
	}
	f.submitted = append(f.submitted, text)
	return nil
}

func (f *fakeInbox) Updates() <-chan chat.Snapshot { return f.updates }
func (f *fakeInbox) Latest() chat.Snapshot         { return f.latest }

var alice = models.Identity{ID: "u1", Name: "Alice"}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestModel_PageSubmit(t *testing.T) {
	inbox := newFakeInbox()
	m := New(inbox, alice, chat.ModePage)
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Contains(t, m.View(), chat.SeedBody)

	m = typeText(t, m, "Hello")
	assert.Equal(t, 5, inbox.keystrokes, "every text change is a keystroke")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"Hello"}, inbox.submitted)
	assert.Empty(t, m.input.Value(), "input cleared after send")
	assert.Empty(t, m.alert)
}

func TestModel_EmptySubmitShowsAlert(t *testing.T) {
	inbox := newFakeInbox()
	m := New(inbox, alice, chat.ModePage)
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m = typeText(t, m, "   ")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, inbox.submitted)
	assert.Equal(t, alertEmpty, m.alert)
	assert.Equal(t, "   ", m.input.Value(), "rejected input is kept")
	assert.Contains(t, m.View(), alertEmpty)

	// Typing again clears the alert.
	m = typeText(t, m, "x")
	assert.Empty(t, m.alert)
}

func TestModel_SubmitWhileDisconnected(t *testing.T) {
	inbox := newFakeInbox()
	inbox.submitErr = chat.ErrNotConnected
	m := New(inbox, alice, chat.ModePage)

	m = typeText(t, m, "hi")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, alertDisconnected, m.alert)
	assert.Equal(t, "hi", m.input.Value())
}

func TestModel_NonEditingKeysAreNotKeystrokes(t *testing.T) {
	inbox := newFakeInbox()
	m := New(inbox, alice, chat.ModePage)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	_ = m
	assert.Equal(t, 0, inbox.keystrokes)
}

func TestModel_Snapshot(t *testing.T) {
	inbox := newFakeInbox()
	m := New(inbox, alice, chat.ModePage)
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m = update(t, m, snapshotMsg(chat.Snapshot{
		Messages: []models.ChatMessage{
			{Name: chat.SeedName, Body: chat.SeedBody},
			{Name: "Alice", Body: "Hello"},
			{Name: "Admin", Body: "<b>Welcome</b>", IsAdmin: true},
		},
		Typers: []string{"Admin"},
		Conn:   chat.ConnConnected,
	}))

	view := m.View()
	assert.Contains(t, view, "Welcome")
	assert.NotContains(t, view, "<b>")
	assert.Contains(t, view, "Admin is typing")
	assert.Contains(t, view, "connected")
	assert.True(t, m.messages.AtBottom())

	m = update(t, m, snapshotMsg(chat.Snapshot{Conn: chat.ConnConnected}))
	assert.NotContains(t, m.View(), "is typing")
}

func TestModel_WidgetOpenClose(t *testing.T) {
	inbox := newFakeInbox()
	m := New(inbox, alice, chat.ModeWidget)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Contains(t, m.View(), "Chat with us")
	m = typeText(t, m, "h")
	assert.Equal(t, 0, inbox.keystrokes, "closed widget ignores typing")
	assert.Equal(t, 0, inbox.connects)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, 1, inbox.connects)
	assert.True(t, m.open)
	assert.LessOrEqual(t, m.messages.Width, widgetWidth)

	m = typeText(t, m, "hi")
	assert.Equal(t, 2, inbox.keystrokes)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.open)
	assert.Equal(t, 1, inbox.disconnects)
}

func TestPresentation(t *testing.T) {
	admin := models.Identity{ID: "a1", Name: "Admin", IsAdmin: true}

	assert.True(t, WidgetVisible(alice))
	assert.False(t, WidgetVisible(admin))
	assert.Equal(t, chat.ModeWidget, Presentation(chat.ModeWidget, alice))
	assert.Equal(t, chat.ModePage, Presentation(chat.ModeWidget, admin))
	assert.Equal(t, chat.ModePage, Presentation(chat.ModePage, alice))

	m := New(newFakeInbox(), admin, chat.ModeWidget)
	assert.True(t, m.open, "admins get the page presentation")
}

func TestTypingLabel(t *testing.T) {
	assert.Equal(t, "Admin is typing", typingLabel([]string{"Admin"}))
	assert.Equal(t, "Admin, Bob are typing", typingLabel([]string{"Admin", "Bob"}))
}
