package logline

import (
	"strings"
	"time"
)

type chunkFormatter interface {
	Format(chunk string) string
}

// Formatter renders streamed messages that carry JSON encoded lines and hands
// the result to Next. Messages that are not JSON objects pass through as raw
// terminal output.
type Formatter struct {
	Next chunkFormatter
	Loc  *time.Location
}

func (f *Formatter) Format(chunk string) string {
	return f.Next.Format(f.Text(chunk))
}

// Text is the terminal text for chunk before any markup is applied.
func (f *Formatter) Text(chunk string) string {
	trimmed := strings.TrimSpace(chunk)
	if !strings.HasPrefix(trimmed, "{") {
		return chunk
	}
	l, err := Decode([]byte(trimmed))
	if err != nil {
		return chunk
	}
	return Format(l, f.Loc)
}
