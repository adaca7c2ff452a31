package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/livelog/pkg/tui/styles"
)

type Keybind struct {
	Key   string
	Label string
}

// StatusBar is the single line at the top of the screen: title, tabs and a
// connection indicator on the left, key hints on the right.
type StatusBar struct {
	Title    string
	Tabs     []string
	Active   int
	Live     bool
	Note     string
	Keybinds []Keybind
	Width    int
	theme    styles.Theme
}

func NewStatusBar(title string) StatusBar {
	return StatusBar{Title: title, theme: styles.DefaultTheme()}
}

func (s StatusBar) WithTabs(tabs []string, active int) StatusBar {
	s.Tabs = tabs
	s.Active = active
	return s
}

// WithLive sets the connection indicator and an optional note next to it.
func (s StatusBar) WithLive(live bool, note string) StatusBar {
	s.Live = live
	s.Note = note
	return s
}

func (s StatusBar) WithKeybinds(kb []Keybind) StatusBar {
	s.Keybinds = kb
	return s
}

func (s StatusBar) WithWidth(w int) StatusBar {
	s.Width = w
	return s
}

func (s StatusBar) Render() string {
	theme := s.theme
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.Text).
		Background(theme.Primary).
		Padding(0, 1).
		Render(s.Title)

	parts := []string{title}
	for i, tab := range s.Tabs {
		style := theme.TitleMuted
		if i == s.Active {
			style = theme.Selected
		}
		parts = append(parts, " ", style.Render(" "+tab+" "))
	}

	dot := theme.StatusFailed.Render(styles.IconLive)
	if s.Live {
		dot = theme.StatusSuccess.Render(styles.IconLive)
	}
	parts = append(parts, "  ", dot)
	if s.Note != "" {
		parts = append(parts, " ", theme.TitleMuted.Render(s.Note))
	}
	left := lipgloss.JoinHorizontal(lipgloss.Center, parts...)

	right := RenderKeybinds(s.Keybinds, theme)
	gap := s.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right

	width := s.Width
	if width <= 0 {
		width = 80
	}
	sep := lipgloss.NewStyle().Foreground(theme.Muted).Render(strings.Repeat("━", width))
	return lipgloss.JoinVertical(lipgloss.Left, line, sep)
}

func RenderKeybinds(keybinds []Keybind, theme styles.Theme) string {
	parts := make([]string, 0, len(keybinds)*2)
	for i, kb := range keybinds {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, theme.KeybindKey.Render("["+kb.Key+"]"))
		parts = append(parts, theme.Keybind.Render(" "+kb.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}
