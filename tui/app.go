package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/karthikraju391/pairchat/chat"
)

// Sender submits compose text to the server.
type Sender interface {
	SendText(text string) error
}

// EventMsg carries one server event into the program.
type EventMsg chat.Event

// ClosedMsg reports that the socket is gone.
type ClosedMsg struct{ Err error }

type row struct {
	side chat.Side
	text string
}

type Model struct {
	conn     Sender
	partner  string
	rows     []row
	input    textinput.Model
	viewport viewport.Model
	status   string
	closed   bool
	width    int
	height   int
}

func NewModel(conn Sender, partner string) Model {
	ti := textinput.New()
	ti.Placeholder = "message..."
	ti.CharLimit = 1000
	ti.Focus()

	m := Model{
		conn:     conn,
		partner:  partner,
		input:    ti,
		viewport: viewport.New(80, 20),
		width:    80,
		height:   24,
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-4) // title, input, status, gap
		m.input.Width = max(10, msg.Width-4)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case EventMsg:
		m.apply(chat.Event(msg))
		return m, nil

	case ClosedMsg:
		m.closed = true
		if msg.Err != nil {
			m.status = "disconnected: " + msg.Err.Error()
		} else {
			m.status = "disconnected"
		}
		return m, nil
	}

	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as-is. The box is only cleared when the server
// confirms with an input_cleared event.
func (m *Model) submit() {
	if m.closed {
		return
	}
	if err := m.conn.SendText(m.input.Value()); err != nil {
		m.status = "send failed: " + err.Error()
	}
}

func (m *Model) apply(e chat.Event) {
	switch e.Type {
	case chat.EventInserted:
		r := row{side: e.Side, text: e.Rendered}
		if e.Index == nil || *e.Index >= len(m.rows) {
			m.rows = append(m.rows, r)
		} else {
			m.rows = slices.Insert(m.rows, max(0, *e.Index), r)
		}
		m.refresh()
	case chat.EventScroll:
		if e.Index != nil && *e.Index >= len(m.rows)-1 {
			m.viewport.GotoBottom()
		}
	case chat.EventInputCleared:
		m.input.Reset()
	case chat.EventNotice:
		m.status = e.Error
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderRows())
}

func (m Model) renderRows() string {
	lines := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		lines = append(lines, renderRow(r, m.width))
	}
	return strings.Join(lines, "\n")
}

func renderRow(r row, width int) string {
	if r.side == chat.Theirs {
		return lipgloss.PlaceHorizontal(width, lipgloss.Left, theirsStyle.Render(r.text))
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, mineStyle.Render(r.text))
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("chat with %s", m.partner)))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
	} else {
		b.WriteString(dimStyle.Render("enter send • pgup/pgdown scroll • esc quit"))
	}
	return b.String()
}
