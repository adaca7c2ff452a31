package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	h      Handlers
	closed bool
}

var _ Conn = (*fakeConn)(nil)

func (f *fakeConn) Attach(h Handlers) { f.h = h }
func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type recordingTarget struct {
	appends []string
	scrolls int
}

func (r *recordingTarget) Append(html string) { r.appends = append(r.appends, html) }
func (r *recordingTarget) ScrollToEnd()       { r.scrolls++ }

func newTestManager(t *testing.T, opts Options) (*Manager, *fakeConn, *frame.Manual) {
	t.Helper()
	clock := frame.NewManual(time.Unix(0, 0), 60)
	conn := &fakeConn{}
	opts.Frames = clock
	m, err := New(conn, opts)
	require.NoError(t, err)
	return m, conn, clock
}

func TestMessagesFlushOncePerFrame(t *testing.T) {
	m, conn, clock := newTestManager(t, Options{})
	target := &recordingTarget{}

	conn.h.OnOpen()
	conn.h.OnMessage("one\n")
	require.NoError(t, m.StartOutput(target))
	require.Equal(t, []string{"one\n"}, target.appends)

	conn.h.OnMessage("two\n")
	conn.h.OnMessage("\x1b[32mthree\x1b[0m\n")
	require.Equal(t, 1, clock.Tick())
	require.Equal(t, []string{"one\n", "two\n<span style=\"color:lime;\">three</span>\n"}, target.appends)

	// empty frames write nothing but keep the loop alive
	require.Equal(t, 1, clock.Tick())
	require.Len(t, target.appends, 2)
	require.Equal(t, 1, clock.Pending())
	require.Equal(t, 0, target.scrolls)
}

func TestAutoFollowScrollsAfterWrites(t *testing.T) {
	m, conn, clock := newTestManager(t, Options{AutoFollow: true})
	target := &recordingTarget{}
	require.NoError(t, m.StartOutput(target))
	require.Equal(t, 0, target.scrolls)

	conn.h.OnMessage("x")
	clock.Tick()
	require.Equal(t, 1, target.scrolls)

	m.SetAutoFollow(false)
	conn.h.OnMessage("y")
	clock.Tick()
	require.Equal(t, 1, target.scrolls)
}

func TestStopOutputHaltsAfterCurrentTick(t *testing.T) {
	m, conn, clock := newTestManager(t, Options{})
	target := &recordingTarget{}
	require.NoError(t, m.StartOutput(target))

	conn.h.OnMessage("last")
	m.StopOutput()
	require.Equal(t, 1, clock.Tick())
	require.Equal(t, []string{"last"}, target.appends)
	require.False(t, m.Running())
	require.Equal(t, 0, clock.Pending())

	conn.h.OnMessage("later")
	require.Equal(t, len("later"), m.Buffered())

	require.NoError(t, m.StartOutput(target))
	require.Equal(t, []string{"last", "later"}, target.appends)
	require.True(t, m.Running())
}

func TestStartOutputTwiceKeepsOneLoop(t *testing.T) {
	m, _, clock := newTestManager(t, Options{})
	target := &recordingTarget{}
	require.NoError(t, m.StartOutput(target))
	require.NoError(t, m.StartOutput(target))
	require.Equal(t, 1, clock.Pending())
}

func TestErrorKeepsBufferedOutput(t *testing.T) {
	closed := 0
	m, conn, clock := newTestManager(t, Options{OnClose: func() { closed++ }})
	target := &recordingTarget{}

	conn.h.OnMessage("kept")
	conn.h.OnError(errors.New("reset by peer"))
	conn.h.OnClose()
	require.EqualError(t, m.Err(), "reset by peer")
	require.Equal(t, 1, closed)

	require.NoError(t, m.StartOutput(target))
	require.Equal(t, []string{"kept"}, target.appends)
	require.Equal(t, 1, clock.Pending())
}

func TestCloseCancelsTick(t *testing.T) {
	m, conn, clock := newTestManager(t, Options{})
	require.NoError(t, m.StartOutput(&recordingTarget{}))
	require.Equal(t, 1, clock.Pending())

	require.NoError(t, m.Close())
	require.True(t, conn.closed)
	require.Equal(t, 0, clock.Pending())
	require.ErrorIs(t, m.StartOutput(&recordingTarget{}), ErrClosed)
	require.NoError(t, m.Close())
}

func TestNewRequiresFrames(t *testing.T) {
	_, err := New(&fakeConn{}, Options{})
	require.Error(t, err)
	_, err = New(nil, Options{Frames: frame.NewManual(time.Unix(0, 0), 60)})
	require.Error(t, err)
}
