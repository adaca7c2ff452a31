package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("stream closed")

// Target receives flushed output.
type Target interface {
	Append(html string)
	ScrollToEnd()
}

// Formatter turns one received message into output markup.
type Formatter interface {
	Format(chunk string) string
}

type Options struct {
	// Formatter defaults to a fresh ansi.Formatter.
	Formatter Formatter
	Frames    frame.Scheduler
	// AutoFollow scrolls the target after every flush that wrote output.
	AutoFollow bool
	// Name labels log entries.
	Name string
	// OnClose runs once the connection has gone away. The manager never
	// reconnects on its own.
	OnClose func()
}

// Manager buffers messages from a Conn and flushes them to a Target at most
// once per frame.
type Manager struct {
	conn   Conn
	opts   Options
	format Formatter

	mu         sync.Mutex
	pending    strings.Builder
	target     Target
	autoFollow bool
	scheduled  bool
	handle     frame.Handle
	stopping   bool
	closed     bool
	open       bool
	lastErr    error
}

func New(conn Conn, opts Options) (*Manager, error) {
	if conn == nil {
		return nil, errors.New("missing connection")
	}
	if opts.Frames == nil {
		return nil, errors.New("missing frame scheduler")
	}
	format := opts.Formatter
	if format == nil {
		format = ansi.NewFormatter()
	}
	m := &Manager{
		conn:       conn,
		opts:       opts,
		format:     format,
		autoFollow: opts.AutoFollow,
	}
	conn.Attach(Handlers{
		OnOpen:    m.onOpen,
		OnMessage: m.onMessage,
		OnError:   m.onError,
		OnClose:   m.onClose,
	})
	return m, nil
}

func (m *Manager) onOpen() {
	m.mu.Lock()
	m.open = true
	m.mu.Unlock()
	log.Debug().Str("stream", m.opts.Name).Msg("stream open")
}

func (m *Manager) onMessage(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.pending.WriteString(m.format.Format(data))
}

func (m *Manager) onError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	log.Warn().Err(err).Str("stream", m.opts.Name).Msg("stream error")
}

func (m *Manager) onClose() {
	m.mu.Lock()
	m.open = false
	m.mu.Unlock()
	log.Debug().Str("stream", m.opts.Name).Msg("stream closed")
	if m.opts.OnClose != nil {
		m.opts.OnClose()
	}
}

// StartOutput flushes to target now and then once per frame until
// StopOutput or Close.
func (m *Manager) StartOutput(target Target) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.target = target
	m.stopping = false
	if m.scheduled {
		m.mu.Unlock()
		return nil
	}
	m.scheduled = true
	m.mu.Unlock()

	m.updateScreen(time.Now())
	return nil
}

// StopOutput lets the flush loop run one more tick and then halt.
func (m *Manager) StopOutput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopping = true
}

func (m *Manager) SetAutoFollow(follow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoFollow = follow
}

// Buffered is the size of output waiting for the next flush.
func (m *Manager) Buffered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Len()
}

func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled
}

// Err is the last transport error seen, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Close cancels the flush loop and closes the connection. Buffered output
// that was never flushed is discarded.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.scheduled && m.handle != 0 {
		m.opts.Frames.Cancel(m.handle)
	}
	m.scheduled = false
	m.handle = 0
	m.mu.Unlock()

	if err := m.conn.Close(); err != nil {
		return errors.Wrap(err, "close stream connection")
	}
	return nil
}

func (m *Manager) updateScreen(time.Time) {
	m.mu.Lock()
	m.handle = 0
	if m.closed {
		m.scheduled = false
		m.mu.Unlock()
		return
	}
	out := m.pending.String()
	m.pending.Reset()
	target, follow := m.target, m.autoFollow
	m.mu.Unlock()

	if out != "" && target != nil {
		target.Append(out)
		if follow {
			target.ScrollToEnd()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping || m.closed {
		m.scheduled = false
		return
	}
	m.handle = m.opts.Frames.Schedule(m.updateScreen)
}
