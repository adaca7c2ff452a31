package tui

import "github.com/go-go-golems/livelog/pkg/build"

type BuildUpsertMsg struct {
	Build build.Record
}

type LogAppendMsg struct {
	Chunk LogChunk
}

type LogEndedMsg struct {
	End LogEnded
}

type EventLogAppendMsg struct {
	Entry EventLogEntry
}

type ConnectionMsg struct {
	State ConnectionState
}
