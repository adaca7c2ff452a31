package tui

const (
	TopicLivelogEvents = "livelog.events"
	TopicUIMessages    = "livelog.ui.msgs"
)

const (
	DomainTypeBuildUpdated = "build.updated"
	DomainTypeLogChunk     = "log.chunk"
	DomainTypeLogEnded     = "log.ended"
	DomainTypeStatus       = "status"
)

const (
	UITypeBuildUpsert = "tui.build.upsert"
	UITypeLogAppend   = "tui.log.append"
	UITypeLogEnded    = "tui.log.ended"
	UITypeEventAppend = "tui.event.append"
	UITypeConnection  = "tui.connection"
)
