package styles

import "github.com/go-go-golems/livelog/pkg/build"

const (
	IconSuccess  = "✓"
	IconError    = "✗"
	IconWarning  = "⚠"
	IconInfo     = "ℹ"
	IconRunning  = "▶"
	IconPending  = "○"
	IconSkipped  = "⊘"
	IconBlocked  = "■"
	IconBullet   = "•"
	IconLive     = "●"
	IconExpanded = "▾"
	IconFolded   = "▸"
)

// BuildStatusIcon returns the icon for a build status.
func BuildStatusIcon(s build.Status) string {
	switch s {
	case build.StatusSuccess:
		return IconSuccess
	case build.StatusFailure, build.StatusError, build.StatusKilled:
		return IconError
	case build.StatusRunning:
		return IconRunning
	case build.StatusSkipped:
		return IconSkipped
	case build.StatusBlocked:
		return IconBlocked
	default:
		return IconPending
	}
}

func FoldIcon(collapsed bool) string {
	if collapsed {
		return IconFolded
	}
	return IconExpanded
}

// LogLevelIcon returns the appropriate icon for a log level.
func LogLevelIcon(level string) string {
	switch level {
	case "error", "ERROR":
		return IconError
	case "warn", "WARN", "warning", "WARNING":
		return IconWarning
	case "info", "INFO":
		return IconInfo
	default:
		return IconBullet
	}
}
