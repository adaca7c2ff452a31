package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar shows how much of a finished log has been replayed.
type ProgressBar struct {
	done  int
	total int
	width int
	style lipgloss.Style
}

func NewProgressBar(done, total int) ProgressBar {
	if done < 0 {
		done = 0
	}
	if total > 0 && done > total {
		done = total
	}
	return ProgressBar{done: done, total: total, width: 20}
}

func (p ProgressBar) WithWidth(width int) ProgressBar {
	if width < 5 {
		width = 5
	}
	p.width = width
	return p
}

func (p ProgressBar) WithStyle(style lipgloss.Style) ProgressBar {
	p.style = style
	return p
}

// Percent is 100 when there is nothing to replay.
func (p ProgressBar) Percent() int {
	if p.total <= 0 {
		return 100
	}
	return p.done * 100 / p.total
}

func (p ProgressBar) Render() string {
	filled := p.width * p.Percent() / 100
	bar := p.style.Render(strings.Repeat("█", filled)) + strings.Repeat("░", p.width-filled)
	return fmt.Sprintf("%s %d/%d", bar, p.done, p.total)
}
