package tui

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/livelog/pkg/build"
	"github.com/go-go-golems/livelog/pkg/events"
	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/go-go-golems/livelog/pkg/stream"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

var _ Sender = (*recordingSender)(nil)

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSender) snapshot() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tea.Msg(nil), r.msgs...)
}

func findMsg[T tea.Msg](msgs []tea.Msg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func startBus(t *testing.T, setup func(bus *Bus)) (*Bus, *recordingSender) {
	t.Helper()
	bus, err := NewInMemoryBus()
	require.NoError(t, err)

	sender := &recordingSender{}
	RegisterDomainToUITransformer(bus)
	RegisterUIForwarder(bus, sender)
	if setup != nil {
		setup(bus)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("bus did not start")
	}
	return bus, sender
}

func TestBuildUpdateReachesUI(t *testing.T) {
	bus, sender := startBus(t, nil)

	r := build.Record{RepoID: 1, PipelineID: 1, Number: 12, Status: build.StatusFailure}
	require.NoError(t, bus.Publish(TopicLivelogEvents, DomainTypeBuildUpdated, BuildUpdated{Build: r, Event: "execution_completed", At: time.Now()}))

	require.Eventually(t, func() bool {
		msgs := sender.snapshot()
		_, upsert := findMsg[BuildUpsertMsg](msgs)
		_, entry := findMsg[EventLogAppendMsg](msgs)
		return upsert && entry
	}, 5*time.Second, 10*time.Millisecond)

	msgs := sender.snapshot()
	upsert, _ := findMsg[BuildUpsertMsg](msgs)
	require.Equal(t, int64(12), upsert.Build.Number)
	entry, _ := findMsg[EventLogAppendMsg](msgs)
	require.Equal(t, LogLevelWarn, entry.Entry.Level)
	require.Contains(t, entry.Entry.Text, "#12 failure")
}

func TestStatusWithConnectionState(t *testing.T) {
	bus, sender := startBus(t, nil)

	down := false
	require.NoError(t, bus.Publish(TopicLivelogEvents, DomainTypeStatus, Status{Source: "builds", Level: LogLevelError, Text: "gone", Connected: &down}))

	require.Eventually(t, func() bool {
		_, ok := findMsg[ConnectionMsg](sender.snapshot())
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	conn, _ := findMsg[ConnectionMsg](sender.snapshot())
	require.False(t, conn.State.Connected)
	require.Equal(t, "gone", conn.State.Note)
}

func TestLogEndedWithError(t *testing.T) {
	bus, sender := startBus(t, nil)
	frames := frame.NewManual(time.Unix(0, 0), 60)
	feed, err := NewLogFeed(bus, frames, 10)
	require.NoError(t, err)
	feed.Ended(stderrors.New("socket closed"))
	require.Equal(t, 1, frames.Drain(10))

	require.Eventually(t, func() bool {
		msgs := sender.snapshot()
		_, ended := findMsg[LogEndedMsg](msgs)
		_, entry := findMsg[EventLogAppendMsg](msgs)
		return ended && entry
	}, 5*time.Second, 10*time.Millisecond)
	entry, _ := findMsg[EventLogAppendMsg](sender.snapshot())
	require.Equal(t, LogLevelError, entry.Entry.Level)
	require.Contains(t, entry.Entry.Text, "socket closed")
}

func TestReplayPublishesHistoryBlocks(t *testing.T) {
	bus, sender := startBus(t, nil)
	frames := frame.NewManual(time.Unix(0, 0), 60)
	feed, err := NewLogFeed(bus, frames, 2)
	require.NoError(t, err)

	feed.Replay([]string{"$ a\n", "b\n", "c\n", "d\n", "e\n"})
	require.Equal(t, 3, frames.Drain(10))

	require.Eventually(t, func() bool {
		n := 0
		for _, m := range sender.snapshot() {
			if v, ok := m.(LogAppendMsg); ok && v.Chunk.History {
				n++
			}
		}
		return n == 3
	}, 5*time.Second, 10*time.Millisecond)
}

type fakeConn struct {
	mu sync.Mutex
	h  stream.Handlers
}

func (c *fakeConn) Attach(h stream.Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h = h
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) send(data string) {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	h.OnMessage(data)
}

func TestPauseAndResumeActions(t *testing.T) {
	frames := frame.NewManual(time.Unix(0, 0), 60)
	conn := &fakeConn{}
	m, err := stream.New(conn, stream.Options{Frames: frames, Formatter: passthrough{}})
	require.NoError(t, err)

	var feed *LogFeed
	bus, sender := startBus(t, func(bus *Bus) {
		var err error
		feed, err = NewLogFeed(bus, frames, 10)
		require.NoError(t, err)
		RegisterActionRunner(context.Background(), bus, nil, feed)
	})
	require.NoError(t, feed.Follow(m))

	conn.send("$ make\n")
	// one frame moves the line into the feed, the next publishes it
	frames.Tick()
	frames.Tick()
	require.Eventually(t, func() bool {
		_, ok := findMsg[LogAppendMsg](sender.snapshot())
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, PublishAction(bus, ActionRequest{Kind: ActionPause}))
	require.Eventually(t, func() bool {
		for _, msg := range sender.snapshot() {
			if v, ok := msg.(EventLogAppendMsg); ok && v.Entry.Text == "log output paused" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	require.True(t, m.Running())

	// the frame after StopOutput ends the loop
	frames.Tick()
	require.False(t, m.Running())

	require.NoError(t, PublishAction(bus, ActionRequest{Kind: ActionResume}))
	require.Eventually(t, m.Running, 5*time.Second, 10*time.Millisecond)
}

func logChunks(sender *recordingSender) []LogChunk {
	var out []LogChunk
	for _, msg := range sender.snapshot() {
		if v, ok := msg.(LogAppendMsg); ok {
			out = append(out, v.Chunk)
		}
	}
	return out
}

// tickUntil advances one frame and waits for the UI to hold n chunks. The
// bus does not order separate publishes, so the tests wait between frames.
func tickUntil(t *testing.T, frames *frame.Manual, sender *recordingSender, n int) {
	t.Helper()
	frames.Tick()
	require.Eventually(t, func() bool { return len(logChunks(sender)) == n }, 5*time.Second, 5*time.Millisecond)
}

func TestLiveLinesDrainOnePerFrameAfterReplay(t *testing.T) {
	frames := frame.NewManual(time.Unix(0, 0), 60)
	conn := &fakeConn{}
	m, err := stream.New(conn, stream.Options{Frames: frames, Formatter: passthrough{}})
	require.NoError(t, err)

	bus, sender := startBus(t, nil)
	feed, err := NewLogFeed(bus, frames, 10)
	require.NoError(t, err)

	feed.Replay([]string{"$ old\n", "x\n", "y\n"})
	require.NoError(t, feed.Follow(m))

	// history goes out in one block
	tickUntil(t, frames, sender, 1)
	require.Equal(t, 0, feed.Pending())

	conn.send("$ live\na\nb\n")
	frames.Tick()
	require.Equal(t, 3, feed.Pending())
	tickUntil(t, frames, sender, 2)
	require.Equal(t, 2, feed.Pending())
	tickUntil(t, frames, sender, 3)
	require.Equal(t, 1, feed.Pending())
	tickUntil(t, frames, sender, 4)
	require.Equal(t, 0, feed.Pending())

	got := logChunks(sender)
	require.True(t, got[0].History)
	require.Equal(t, "$ old\nx\ny\n", got[0].Text)
	for i, want := range []string{"$ live\n", "a\n", "b\n"} {
		require.False(t, got[i+1].History)
		require.Equal(t, want, got[i+1].Text)
	}
}

func TestLiveBacklogDrainsInBlocks(t *testing.T) {
	frames := frame.NewManual(time.Unix(0, 0), 60)
	conn := &fakeConn{}
	m, err := stream.New(conn, stream.Options{Frames: frames, Formatter: passthrough{}})
	require.NoError(t, err)

	bus, sender := startBus(t, nil)
	feed, err := NewLogFeed(bus, frames, 2)
	require.NoError(t, err)
	require.NoError(t, feed.Follow(m))

	conn.send("1\n2\n3\n4\n5\n")
	frames.Tick()
	require.Equal(t, 5, feed.Pending())
	tickUntil(t, frames, sender, 1)
	require.Equal(t, 3, feed.Pending())
	tickUntil(t, frames, sender, 2)
	require.Equal(t, 1, feed.Pending())
	tickUntil(t, frames, sender, 3)
	require.Equal(t, 0, feed.Pending())

	got := logChunks(sender)
	require.Equal(t, "1\n2\n", got[0].Text)
	require.Equal(t, "5\n", got[2].Text)
}

func TestLogEndFollowsQueuedLines(t *testing.T) {
	bus, sender := startBus(t, nil)
	frames := frame.NewManual(time.Unix(0, 0), 60)
	feed, err := NewLogFeed(bus, frames, 1)
	require.NoError(t, err)

	feed.Replay([]string{"a\n", "b\n"})
	feed.Ended(nil)
	tickUntil(t, frames, sender, 1)
	tickUntil(t, frames, sender, 2)
	_, ended := findMsg[LogEndedMsg](sender.snapshot())
	require.False(t, ended)

	frames.Tick()
	require.Eventually(t, func() bool {
		_, ok := findMsg[LogEndedMsg](sender.snapshot())
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

type passthrough struct{}

func (passthrough) Format(s string) string { return s }

type fakeLister struct {
	records []build.Record
}

func (f fakeLister) ListBuilds(context.Context, string) ([]build.Record, error) {
	return f.records, nil
}

type fakeSource struct {
	mu        sync.Mutex
	listeners map[string][]events.Listener
	errFns    []func(error)
}

func (s *fakeSource) AddListener(name string, fn events.Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[name] = append(s.listeners[name], fn)
	return func() {}
}

func (s *fakeSource) OnError(fn func(error)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errFns = append(s.errFns, fn)
	return func() {}
}

func (s *fakeSource) Start()       {}
func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) emit(ev events.Event) {
	s.mu.Lock()
	fns := append([]events.Listener(nil), s.listeners[ev.Name]...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func TestBuildWatcherSeedsAndFollows(t *testing.T) {
	bus, sender := startBus(t, nil)

	srcs := make(chan *fakeSource, 1)
	reg := events.NewRegistry(events.DialerFunc(func(_ context.Context, scope string, names []string) (events.Source, error) {
		src := &fakeSource{listeners: map[string][]events.Listener{}}
		srcs <- src
		return src, nil
	}))
	w := &BuildWatcher{
		Bus:      bus,
		Lister:   fakeLister{records: []build.Record{{RepoID: 1, PipelineID: 1, Number: 1, Status: build.StatusSuccess}}},
		Registry: reg,
		Scope:    "acme",
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var src *fakeSource
	select {
	case src = <-srcs:
	case <-time.After(5 * time.Second):
		t.Fatal("no event connection opened")
	}
	src.emit(events.Event{Name: "execution_running", Data: `{"repo_id":1,"pipeline_id":1,"number":2,"status":"running"}`})

	require.Eventually(t, func() bool {
		n := 0
		for _, m := range sender.snapshot() {
			if _, ok := m.(BuildUpsertMsg); ok {
				n++
			}
		}
		return n == 2
	}, 5*time.Second, 10*time.Millisecond)

	conn, ok := findMsg[ConnectionMsg](sender.snapshot())
	require.True(t, ok)
	require.True(t, conn.State.Connected)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, 0, reg.Open())
}
