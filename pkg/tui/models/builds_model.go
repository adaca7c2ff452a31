package models

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/go-go-golems/livelog/pkg/events"
	"github.com/go-go-golems/livelog/pkg/tui/styles"
	"github.com/go-go-golems/livelog/pkg/tui/widgets"
)

// BuildsModel lists builds in arrival order. Updates to a known build
// replace it in place.
type BuildsModel struct {
	width  int
	height int

	builds   *events.List[string, build.Record]
	selected int
	now      func() time.Time
}

func NewBuildsModel() BuildsModel {
	return BuildsModel{
		builds: build.NewList(),
		now:    time.Now,
	}
}

func (m BuildsModel) WithSize(width, height int) BuildsModel {
	m.width, m.height = width, height
	return m
}

func (m BuildsModel) Upsert(r build.Record) BuildsModel {
	m.builds.Upsert(r)
	return m
}

func (m BuildsModel) Len() int {
	return m.builds.Len()
}

// Selected returns the highlighted build.
func (m BuildsModel) Selected() (build.Record, bool) {
	items := m.builds.Items()
	if m.selected < 0 || m.selected >= len(items) {
		return build.Record{}, false
	}
	return items[m.selected], true
}

func (m BuildsModel) Update(msg tea.Msg) (BuildsModel, tea.Cmd) {
	v, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch v.String() {
	case "j", "down":
		if m.selected < m.builds.Len()-1 {
			m.selected++
		}
	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
	case "g", "home":
		m.selected = 0
	case "G", "end":
		m.selected = maxInt(0, m.builds.Len()-1)
	}
	return m, nil
}

func (m BuildsModel) View() string {
	theme := styles.DefaultTheme()
	items := m.builds.Items()

	box := widgets.NewBox(fmt.Sprintf("Builds (%d)", len(items))).
		WithTitleRight("[j/k] select").
		WithSize(m.width, m.height)
	if len(items) == 0 {
		return box.WithContent(theme.TitleMuted.Render("(waiting for builds)")).Render()
	}

	// keep the selection visible
	rows := maxInt(1, m.height-3)
	start := 0
	if m.selected >= rows {
		start = m.selected - rows + 1
	}
	end := minInt(len(items), start+rows)

	now := m.now()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.renderRow(theme, items[i], i == m.selected, now))
	}
	return box.WithContent(strings.Join(lines, "\n")).Render()
}

func (m BuildsModel) renderRow(theme styles.Theme, r build.Record, selected bool, now time.Time) string {
	status := theme.BuildStatus(r.Status)
	cursor := "  "
	if selected {
		cursor = "> "
	}
	dur := ""
	if d := r.Duration(now); d > 0 {
		dur = d.Round(time.Second).String()
	}
	msg := firstLine(r.Message)
	row := lipgloss.JoinHorizontal(lipgloss.Top,
		cursor,
		status.Render(styles.BuildStatusIcon(r.Status)),
		" ",
		theme.Title.Render(fmt.Sprintf("#%-5d", r.Number)),
		" ",
		status.Render(fmt.Sprintf("%-8s", r.Status)),
		" ",
		theme.TitleMuted.Render(fmt.Sprintf("%-16s", r.Branch)),
		" ",
		theme.TitleMuted.Render(r.ShortCommit()),
		"  ",
		fmt.Sprintf("%8s", dur),
		"  ",
		msg,
	)
	if selected {
		return theme.Selected.Render(row)
	}
	return row
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
