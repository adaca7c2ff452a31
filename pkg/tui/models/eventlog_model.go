package models

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/livelog/pkg/tui"
	"github.com/go-go-golems/livelog/pkg/tui/styles"
	"github.com/go-go-golems/livelog/pkg/tui/widgets"
)

const defaultEventLogSize = 500

// EventLogModel keeps the most recent status lines: build transitions,
// connection changes and action results.
type EventLogModel struct {
	max     int
	entries []tui.EventLogEntry

	width  int
	height int

	searching bool
	search    textinput.Model
	filter    string

	vp viewport.Model
}

func NewEventLogModel() EventLogModel {
	search := textinput.New()
	search.Placeholder = "filter…"
	search.Prompt = "/ "
	search.CharLimit = 200

	return EventLogModel{
		max:    defaultEventLogSize,
		search: search,
		vp:     viewport.New(0, 0),
	}
}

func (m EventLogModel) WithSize(width, height int) EventLogModel {
	m.width, m.height = width, height
	m.vp.Width = maxInt(0, width-2)
	m.vp.Height = maxInt(1, height-3)
	return m.refresh(false)
}

// Searching reports whether key presses go to the filter input.
func (m EventLogModel) Searching() bool {
	return m.searching
}

func (m EventLogModel) Entries() []tui.EventLogEntry {
	return m.entries
}

func (m EventLogModel) Update(msg tea.Msg) (EventLogModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.searching {
		switch v.String() {
		case "esc":
			m.searching = false
			m.search.Blur()
			return m, nil
		case "enter":
			m.filter = strings.TrimSpace(m.search.Value())
			m.searching = false
			m.search.Blur()
			return m.refresh(true), nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(v)
		return m, cmd
	}

	switch v.String() {
	case "/":
		m.searching = true
		m.search.SetValue(m.filter)
		m.search.CursorEnd()
		m.search.Focus()
		return m, nil
	case "ctrl+l":
		m.filter = ""
		m.search.SetValue("")
		return m.refresh(true), nil
	case "c":
		m.entries = nil
		return m.refresh(true), nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(v)
	return m, cmd
}

func (m EventLogModel) Append(e tui.EventLogEntry) EventLogModel {
	m.entries = append(m.entries, e)
	if m.max > 0 && len(m.entries) > m.max {
		m.entries = append([]tui.EventLogEntry(nil), m.entries[len(m.entries)-m.max:]...)
	}
	return m.refresh(true)
}

func (m EventLogModel) matches(e tui.EventLogEntry) bool {
	if m.filter == "" {
		return true
	}
	f := strings.ToLower(m.filter)
	return strings.Contains(strings.ToLower(e.Text), f) || strings.Contains(strings.ToLower(e.Source), f)
}

func (m EventLogModel) refresh(gotoBottom bool) EventLogModel {
	theme := styles.DefaultTheme()
	lines := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		if !m.matches(e) {
			continue
		}
		lines = append(lines, renderEntry(theme, e))
	}
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	m.vp.SetContent(content)
	if gotoBottom {
		m.vp.GotoBottom()
	}
	return m
}

func renderEntry(theme styles.Theme, e tui.EventLogEntry) string {
	level := e.Level
	if level == "" {
		level = tui.LogLevelInfo
	}
	source := strings.TrimSpace(e.Source)
	if source == "" {
		source = "livelog"
	}

	style := theme.TitleMuted
	switch level {
	case tui.LogLevelError:
		style = theme.StatusFailed
	case tui.LogLevelWarn:
		style = lipgloss.NewStyle().Foreground(theme.Warning)
	}

	ts := ""
	if !e.At.IsZero() {
		ts = e.At.Format("15:04:05")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		style.Render(styles.LogLevelIcon(string(level))),
		" ",
		theme.TitleMuted.Render(ts),
		" ",
		theme.TitleMuted.Render(fmt.Sprintf("[%s]", source)),
		"  ",
		style.Render(e.Text),
	)
}

func (m EventLogModel) View() string {
	theme := styles.DefaultTheme()

	right := "[/] filter  [c] clear"
	if m.filter != "" {
		right = fmt.Sprintf("filter=%q  %s", m.filter, right)
	}

	var sections []string
	boxHeight := m.height
	if m.searching {
		sections = append(sections, m.search.View())
		boxHeight--
	}

	content := m.vp.View()
	if len(m.entries) == 0 {
		content = theme.TitleMuted.Render("(no events yet)")
	}
	sections = append(sections, widgets.NewBox(fmt.Sprintf("Events (%d)", len(m.entries))).
		WithTitleRight(right).
		WithContent(content).
		WithSize(m.width, boxHeight).
		Render())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
