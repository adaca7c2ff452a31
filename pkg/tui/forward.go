package tui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/pkg/errors"
)

// Sender is the part of tea.Program the forwarder needs.
type Sender interface {
	Send(msg tea.Msg)
}

var _ Sender = (*tea.Program)(nil)

func RegisterUIForwarder(bus *Bus, p Sender) {
	bus.AddHandler("livelog-ui-forward", TopicUIMessages, func(msg *message.Message) error {
		defer msg.Ack()

		env, err := readEnvelope(msg)
		if err != nil {
			return errors.Wrap(err, "ui envelope")
		}

		switch env.Type {
		case UITypeBuildUpsert:
			r, err := decodePayload[build.Record](env)
			if err != nil {
				return err
			}
			p.Send(BuildUpsertMsg{Build: r})
		case UITypeLogAppend:
			c, err := decodePayload[LogChunk](env)
			if err != nil {
				return err
			}
			p.Send(LogAppendMsg{Chunk: c})
		case UITypeLogEnded:
			e, err := decodePayload[LogEnded](env)
			if err != nil {
				return err
			}
			p.Send(LogEndedMsg{End: e})
		case UITypeEventAppend:
			e, err := decodePayload[EventLogEntry](env)
			if err != nil {
				return err
			}
			p.Send(EventLogAppendMsg{Entry: e})
		case UITypeConnection:
			s, err := decodePayload[ConnectionState](env)
			if err != nil {
				return err
			}
			p.Send(ConnectionMsg{State: s})
		}
		return nil
	})
}
