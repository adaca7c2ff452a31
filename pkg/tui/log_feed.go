package tui

import (
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/livelog/pkg/batch"
	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/go-go-golems/livelog/pkg/stream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type feedItem struct {
	text    string
	history bool
	end     bool
	err     string
}

// LogFeed publishes log output on the bus. Replayed history and live lines
// share one queue, drained at most one block per frame, so history always
// reaches the UI before live output. History drains in bulk; once it is
// gone and a live log is followed, lines drain one per frame unless they
// back up.
type LogFeed struct {
	Bus *Bus

	queue *batch.Scheduler[feedItem]

	mu        sync.Mutex
	manager   *stream.Manager
	following bool
	history   int
}

var _ stream.Target = (*LogFeed)(nil)

func NewLogFeed(bus *Bus, frames frame.Scheduler, maxBlock int) (*LogFeed, error) {
	if bus == nil {
		return nil, errors.New("missing bus")
	}
	f := &LogFeed{Bus: bus}
	q, err := batch.New(batch.Options[feedItem]{
		Name:         "log-feed",
		Handler:      f.publishBlock,
		MaxBlockSize: maxBlock,
		Frames:       frames,
	})
	if err != nil {
		return nil, err
	}
	f.queue = q
	return f, nil
}

// Append queues flushed live output line by line.
func (f *LogFeed) Append(text string) {
	if text == "" {
		return
	}
	parts := strings.SplitAfter(text, "\n")
	items := make([]feedItem, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			items = append(items, feedItem{text: p})
		}
	}
	f.queue.Submit(items...)
}

// ScrollToEnd is a no-op; the log view follows on its own.
func (f *LogFeed) ScrollToEnd() {}

// Follow starts flushing m into the feed.
func (f *LogFeed) Follow(m *stream.Manager) error {
	f.mu.Lock()
	f.manager = m
	f.following = true
	live := f.history == 0
	f.mu.Unlock()
	if live {
		f.queue.SetStreaming(true)
	}
	return m.StartOutput(f)
}

func (f *LogFeed) Pause() {
	f.mu.Lock()
	m := f.manager
	f.mu.Unlock()
	if m != nil {
		m.StopOutput()
	}
}

func (f *LogFeed) Resume() error {
	f.mu.Lock()
	m := f.manager
	f.mu.Unlock()
	if m == nil {
		return errors.New("no live log")
	}
	return m.StartOutput(f)
}

// Replay queues finished output ahead of anything appended later.
func (f *LogFeed) Replay(lines []string) {
	if len(lines) == 0 {
		return
	}
	items := make([]feedItem, len(lines))
	for i, l := range lines {
		items[i] = feedItem{text: l, history: true}
	}
	f.mu.Lock()
	f.history += len(items)
	f.mu.Unlock()
	f.queue.SetStreaming(false)
	f.queue.Submit(items...)
}

// Ended reports the end of the live log after everything queued before it.
// err may be nil.
func (f *LogFeed) Ended(err error) {
	item := feedItem{end: true}
	if err != nil {
		item.err = err.Error()
	}
	f.queue.Submit(item)
}

// Pending is the number of queued items.
func (f *LogFeed) Pending() int {
	return f.queue.Len()
}

func (f *LogFeed) Close() error {
	f.queue.Close()
	f.mu.Lock()
	m := f.manager
	f.manager = nil
	f.mu.Unlock()
	if m != nil {
		return m.Close()
	}
	return nil
}

// publishBlock sends runs of live or history lines as one chunk each.
func (f *LogFeed) publishBlock(block []feedItem) {
	var sb strings.Builder
	history, replayed := false, 0
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		f.publishChunk(LogChunk{Text: sb.String(), At: time.Now(), History: history})
		sb.Reset()
	}
	for _, it := range block {
		if it.end {
			flush()
			f.publishEnd(it.err)
			continue
		}
		if it.history != history {
			flush()
			history = it.history
		}
		if it.history {
			replayed++
		}
		sb.WriteString(it.text)
	}
	flush()

	if replayed == 0 {
		return
	}
	f.mu.Lock()
	f.history -= replayed
	live := f.history == 0 && f.following
	f.mu.Unlock()
	if live {
		f.queue.SetStreaming(true)
	}
}

func (f *LogFeed) publishEnd(msg string) {
	if err := f.Bus.Publish(TopicLivelogEvents, DomainTypeLogEnded, LogEnded{At: time.Now(), Error: msg}); err != nil {
		log.Error().Err(err).Msg("publish log end")
	}
}

func (f *LogFeed) publishChunk(c LogChunk) {
	if err := f.Bus.Publish(TopicLivelogEvents, DomainTypeLogChunk, c); err != nil {
		log.Error().Err(err).Msg("publish log chunk")
	}
}
