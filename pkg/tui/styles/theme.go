package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/livelog/pkg/build"
)

// Theme defines the color palette and base styles for the TUI.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	TextDim   lipgloss.Color

	Border     lipgloss.Style
	Title      lipgloss.Style
	TitleMuted lipgloss.Style
	Selected   lipgloss.Style
	Keybind    lipgloss.Style
	KeybindKey lipgloss.Style

	// log view
	FoldTitle  lipgloss.Style
	LineNumber lipgloss.Style
	Elapsed    lipgloss.Style

	StatusRunning lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusPending lipgloss.Style
	StatusSuccess lipgloss.Style
}

func DefaultTheme() Theme {
	primary := lipgloss.Color("#2563EB")   // Blue
	secondary := lipgloss.Color("#06B6D4") // Cyan
	success := lipgloss.Color("#22C55E")   // Green
	warning := lipgloss.Color("#EAB308")   // Yellow
	errorC := lipgloss.Color("#EF4444")    // Red
	muted := lipgloss.Color("#6B7280")     // Gray
	text := lipgloss.Color("#F9FAFB")
	textDim := lipgloss.Color("#9CA3AF")

	return Theme{
		Primary:   primary,
		Secondary: secondary,
		Success:   success,
		Warning:   warning,
		Error:     errorC,
		Muted:     muted,
		Text:      text,
		TextDim:   textDim,

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		Title:      lipgloss.NewStyle().Bold(true).Foreground(text),
		TitleMuted: lipgloss.NewStyle().Foreground(textDim),
		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(text).
			Background(lipgloss.Color("#374151")),
		Keybind:    lipgloss.NewStyle().Foreground(textDim),
		KeybindKey: lipgloss.NewStyle().Bold(true).Foreground(secondary),

		FoldTitle:  lipgloss.NewStyle().Bold(true).Foreground(secondary),
		LineNumber: lipgloss.NewStyle().Foreground(muted).Width(5).Align(lipgloss.Right),
		Elapsed:    lipgloss.NewStyle().Foreground(muted),

		StatusRunning: lipgloss.NewStyle().Foreground(primary),
		StatusFailed:  lipgloss.NewStyle().Foreground(errorC),
		StatusPending: lipgloss.NewStyle().Foreground(muted),
		StatusSuccess: lipgloss.NewStyle().Foreground(success),
	}
}

// BuildStatus picks the style a build status is drawn in.
func (t Theme) BuildStatus(s build.Status) lipgloss.Style {
	switch s {
	case build.StatusSuccess:
		return t.StatusSuccess
	case build.StatusFailure, build.StatusError, build.StatusKilled:
		return t.StatusFailed
	case build.StatusRunning:
		return t.StatusRunning
	default:
		return t.StatusPending
	}
}
