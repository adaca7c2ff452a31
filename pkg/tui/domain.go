package tui

import (
	"time"

	"github.com/go-go-golems/livelog/pkg/build"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type EventLogEntry struct {
	At     time.Time `json:"at"`
	Source string    `json:"source,omitempty"`
	Level  LogLevel  `json:"level,omitempty"`
	Text   string    `json:"text"`
}

type BuildUpdated struct {
	Build build.Record `json:"build"`
	Event string       `json:"event,omitempty"`
	At    time.Time    `json:"at"`
}

// LogChunk is one flush worth of terminal output.
type LogChunk struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	// History marks output replayed from a finished build.
	History bool `json:"history,omitempty"`
}

type LogEnded struct {
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}

type Status struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Level  LogLevel  `json:"level"`
	Text   string    `json:"text"`
	// Connected is set when the status reports a change of the event
	// connection.
	Connected *bool `json:"connected,omitempty"`
}

type ConnectionState struct {
	At        time.Time `json:"at"`
	Connected bool      `json:"connected"`
	Note      string    `json:"note,omitempty"`
}
