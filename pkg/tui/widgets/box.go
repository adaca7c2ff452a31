package widgets

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/livelog/pkg/tui/styles"
)

// Box is a bordered panel with a title row.
type Box struct {
	Title      string
	TitleRight string
	Content    string
	Width      int
	Height     int
	Style      lipgloss.Style
	theme      styles.Theme
}

func NewBox(title string) Box {
	theme := styles.DefaultTheme()
	return Box{
		Title: title,
		Style: theme.Border,
		theme: theme,
	}
}

func (b Box) WithContent(content string) Box {
	b.Content = content
	return b
}

// WithTitleRight sets text drawn at the right end of the title row,
// usually key hints.
func (b Box) WithTitleRight(text string) Box {
	b.TitleRight = text
	return b
}

func (b Box) WithSize(width, height int) Box {
	b.Width = width
	b.Height = height
	return b
}

// Render draws the box. Height counts the borders and the title row.
func (b Box) Render() string {
	inner := b.Width - 2
	if inner < 0 {
		inner = 0
	}

	body := b.Content
	if row := b.titleRow(inner); row != "" {
		body = row + "\n" + body
	}

	style := b.Style
	if b.Width > 0 {
		style = style.Width(inner)
	}
	if b.Height > 0 {
		h := b.Height - 2
		if b.Title != "" || b.TitleRight != "" {
			h--
		}
		if h < 0 {
			h = 0
		}
		style = style.Height(h).MaxHeight(b.Height)
	}
	return style.Render(body)
}

func (b Box) titleRow(width int) string {
	if b.Title == "" && b.TitleRight == "" {
		return ""
	}
	left := b.theme.Title.Render(b.Title)
	right := b.theme.TitleMuted.Render(b.TitleRight)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(gap).Render(""), right)
}
