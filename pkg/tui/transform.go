package tui

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/pkg/errors"
)

// RegisterDomainToUITransformer republishes domain events as UI messages and
// derives event log lines from them.
func RegisterDomainToUITransformer(bus *Bus) {
	bus.AddHandler("livelog-domain-to-ui", TopicLivelogEvents, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := readEnvelope(msg)
		if err != nil {
			return errors.Wrap(err, "domain envelope")
		}

		publishEventText := func(e EventLogEntry) error {
			return bus.Publish(TopicUIMessages, UITypeEventAppend, e)
		}

		switch env.Type {
		case DomainTypeBuildUpdated:
			ev, err := decodePayload[BuildUpdated](env)
			if err != nil {
				return err
			}
			if err := bus.Publish(TopicUIMessages, UITypeBuildUpsert, ev.Build); err != nil {
				return err
			}
			if ev.Event == "" {
				return nil
			}
			level := LogLevelInfo
			if ev.Build.Status == build.StatusFailure || ev.Build.Status == build.StatusError {
				level = LogLevelWarn
			}
			return publishEventText(EventLogEntry{
				At:     ev.At,
				Source: "builds",
				Level:  level,
				Text:   fmt.Sprintf("#%d %s (%s)", ev.Build.Number, ev.Build.Status, ev.Event),
			})
		case DomainTypeLogChunk:
			ev, err := decodePayload[LogChunk](env)
			if err != nil {
				return err
			}
			return bus.Publish(TopicUIMessages, UITypeLogAppend, ev)
		case DomainTypeLogEnded:
			ev, err := decodePayload[LogEnded](env)
			if err != nil {
				return err
			}
			if err := bus.Publish(TopicUIMessages, UITypeLogEnded, ev); err != nil {
				return err
			}
			entry := EventLogEntry{At: ev.At, Source: "log", Level: LogLevelInfo, Text: "log stream closed"}
			if ev.Error != "" {
				entry.Level = LogLevelError
				entry.Text = "log stream failed: " + ev.Error
			}
			return publishEventText(entry)
		case DomainTypeStatus:
			ev, err := decodePayload[Status](env)
			if err != nil {
				return err
			}
			if ev.Connected != nil {
				state := ConnectionState{At: ev.At, Connected: *ev.Connected}
				if !state.Connected {
					state.Note = ev.Text
				}
				if err := bus.Publish(TopicUIMessages, UITypeConnection, state); err != nil {
					return err
				}
			}
			return publishEventText(EventLogEntry{At: ev.At, Source: ev.Source, Level: ev.Level, Text: ev.Text})
		}
		return nil
	})
}
