package tui

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/go-go-golems/livelog/pkg/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type BuildLister interface {
	ListBuilds(ctx context.Context, scope string) ([]build.Record, error)
}

// BuildWatcher seeds the build list and then follows status events for one
// scope. A failed event connection stays down until Reconnect.
type BuildWatcher struct {
	Bus      *Bus
	Lister   BuildLister
	Registry *events.Registry
	Scope    string

	mu  sync.Mutex
	sub *events.Subscription
}

func (w *BuildWatcher) Run(ctx context.Context) error {
	if w.Bus == nil {
		return errors.New("missing bus")
	}
	if w.Registry == nil {
		return errors.New("missing event registry")
	}

	if w.Lister != nil {
		records, err := w.Lister.ListBuilds(ctx, w.Scope)
		if err != nil {
			w.status(LogLevelWarn, "initial build list: "+err.Error())
		}
		for _, r := range records {
			if err := w.Bus.Publish(TopicLivelogEvents, DomainTypeBuildUpdated, BuildUpdated{Build: r, At: time.Now()}); err != nil {
				return err
			}
		}
	}

	sub := w.Registry.Subscribe(w.Scope, build.StatusEvents, w.onEvent, w.onError)
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()
	defer sub.Close()

	if err := sub.SetEnabled(ctx, true); err != nil {
		w.connection(false, LogLevelError, err.Error())
	} else {
		w.connection(true, LogLevelInfo, "following builds in "+w.Scope)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Reconnect drops the current event connection, if any, and opens a new one.
func (w *BuildWatcher) Reconnect(ctx context.Context) error {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()
	if sub == nil {
		return errors.New("build watcher not running")
	}
	if err := sub.SetEnabled(ctx, false); err != nil {
		return err
	}
	if err := sub.SetEnabled(ctx, true); err != nil {
		w.connection(false, LogLevelError, err.Error())
		return err
	}
	w.connection(true, LogLevelInfo, "reconnected to "+w.Scope)
	return nil
}

func (w *BuildWatcher) onEvent(ev events.Event) {
	r, err := build.FromEvent(ev.Name, []byte(ev.Data))
	if err != nil {
		log.Warn().Err(err).Str("event", ev.Name).Msg("skip build event")
		return
	}
	if err := w.Bus.Publish(TopicLivelogEvents, DomainTypeBuildUpdated, BuildUpdated{Build: r, Event: ev.Name, At: time.Now()}); err != nil {
		log.Error().Err(err).Msg("publish build update")
	}
}

func (w *BuildWatcher) onError(err error) {
	w.connection(false, LogLevelError, "build events: "+err.Error()+" (press r to reconnect)")
}

func (w *BuildWatcher) status(level LogLevel, text string) {
	w.publishStatus(Status{At: time.Now(), Source: "builds", Level: level, Text: text})
}

func (w *BuildWatcher) connection(up bool, level LogLevel, text string) {
	w.publishStatus(Status{At: time.Now(), Source: "builds", Level: level, Text: text, Connected: &up})
}

func (w *BuildWatcher) publishStatus(s Status) {
	if err := w.Bus.Publish(TopicLivelogEvents, DomainTypeStatus, s); err != nil {
		log.Error().Err(err).Msg("publish status")
	}
}
