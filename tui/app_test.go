package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/karthikraju391/pairchat/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendText(text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

func intp(i int) *int { return &i }

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func typeText(t *testing.T, m Model, s string) Model {
	for _, r := range s {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestEnterSendsWithoutClearing(t *testing.T) {
	s := &fakeSender{}
	m := NewModel(s, "u2")
	m = typeText(t, m, "hi")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"hi"}, s.sent)
	assert.Equal(t, "hi", m.input.Value())

	m = update(t, m, EventMsg{Type: chat.EventInputCleared})
	assert.Empty(t, m.input.Value())
}

func TestInsertedEventsBuildRows(t *testing.T) {
	m := NewModel(&fakeSender{}, "u2")
	m = update(t, m, EventMsg{Type: chat.EventInserted, Index: intp(0), Side: chat.Mine, Rendered: "[09:00 AM] a"})
	m = update(t, m, EventMsg{Type: chat.EventInserted, Index: intp(1), Side: chat.Theirs, Rendered: "[09:01 AM] b"})
	m = update(t, m, EventMsg{Type: chat.EventScroll, Index: intp(1)})

	require.Len(t, m.rows, 2)
	assert.Equal(t, chat.Mine, m.rows[0].side)
	assert.Equal(t, "[09:01 AM] b", m.rows[1].text)
	assert.Contains(t, m.View(), "[09:01 AM] b")
}

func TestNoticeAndSendFailureShowStatus(t *testing.T) {
	s := &fakeSender{err: errors.New("broken pipe")}
	m := NewModel(s, "u2")

	m = update(t, m, EventMsg{Type: chat.EventNotice, Error: "write failed"})
	assert.Equal(t, "write failed", m.status)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Contains(t, m.status, "broken pipe")
}

func TestClosedStopsSending(t *testing.T) {
	s := &fakeSender{}
	m := NewModel(s, "u2")
	m = update(t, m, ClosedMsg{Err: errors.New("eof")})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, s.sent)
	assert.Equal(t, "disconnected: eof", m.status)
}

func TestChatURL(t *testing.T) {
	u, err := ChatURL("http://localhost:8080/", "u2", "a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/chat/u2?token=a.b.c", u)

	u, err = ChatURL("wss://chat.example.com", "u-9", "t")
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/chat/u-9?token=t", u)

	_, err = ChatURL("ftp://x", "u2", "t")
	assert.Error(t, err)
}
