package tui

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// RegisterActionRunner executes UI action requests against the running
// watcher and log feed. Either may be nil.
func RegisterActionRunner(ctx context.Context, bus *Bus, watcher *BuildWatcher, feed *LogFeed) {
	bus.AddHandler("livelog-ui-actions", TopicUIActions, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := readEnvelope(msg)
		if err != nil {
			publishActionStatus(bus, LogLevelWarn, "action: bad envelope")
			return nil
		}
		req, err := decodePayload[ActionRequest](env)
		if err != nil {
			publishActionStatus(bus, LogLevelWarn, "action: bad request")
			return nil
		}

		switch req.Kind {
		case ActionReconnect:
			if watcher == nil {
				return nil
			}
			if err := watcher.Reconnect(ctx); err != nil {
				publishActionStatus(bus, LogLevelError, "reconnect failed: "+err.Error())
			}
		case ActionPause:
			if feed != nil {
				feed.Pause()
				publishActionStatus(bus, LogLevelInfo, "log output paused")
			}
		case ActionResume:
			if feed == nil {
				return nil
			}
			if err := feed.Resume(); err != nil {
				publishActionStatus(bus, LogLevelWarn, "resume: "+err.Error())
				return nil
			}
			publishActionStatus(bus, LogLevelInfo, "log output resumed")
		default:
			publishActionStatus(bus, LogLevelWarn, "action: unknown kind "+string(req.Kind))
		}
		return nil
	})
}

func publishActionStatus(bus *Bus, level LogLevel, text string) {
	if err := bus.Publish(TopicLivelogEvents, DomainTypeStatus, Status{At: time.Now(), Source: "action", Level: level, Text: text}); err != nil {
		log.Error().Err(err).Msg("publish action status")
	}
}
