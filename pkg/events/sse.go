package events

import (
	"bufio"
	"context"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultEventsPath is the server path of the event stream for a scope.
const DefaultEventsPath = "/api/v1/spaces/%s/+/events"

var ErrStreamEnded = errors.New("event stream ended")

// hub stores listeners and dispatches outside its lock.
type hub struct {
	mu        sync.Mutex
	next      int
	listeners map[string]map[int]Listener
	errFns    map[int]func(error)
}

func newHub() *hub {
	return &hub{listeners: map[string]map[int]Listener{}, errFns: map[int]func(error){}}
}

func (h *hub) add(name string, fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	if h.listeners[name] == nil {
		h.listeners[name] = map[int]Listener{}
	}
	h.listeners[name][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[name], id)
	}
}

func (h *hub) addErr(fn func(error)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.errFns[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.errFns, id)
	}
}

func (h *hub) dispatch(ev Event) {
	h.mu.Lock()
	fns := make([]Listener, 0, len(h.listeners[ev.Name]))
	for _, fn := range h.listeners[ev.Name] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *hub) fail(err error) {
	h.mu.Lock()
	fns := make([]func(error), 0, len(h.errFns))
	for _, fn := range h.errFns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

// SSESource reads a text/event-stream response.
type SSESource struct {
	*hub

	client *resty.Client
	url    string
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

var _ Source = (*SSESource)(nil)

// NewSSESource prepares a source for url. Nothing is requested until Start.
func NewSSESource(client *resty.Client, url string) *SSESource {
	ctx, cancel := context.WithCancel(context.Background())
	return &SSESource{
		hub:    newHub(),
		client: client,
		url:    url,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *SSESource) AddListener(name string, fn Listener) func() {
	return s.add(name, fn)
}

func (s *SSESource) OnError(fn func(error)) func() {
	return s.addErr(fn)
}

func (s *SSESource) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Done is closed when the reader goroutine exits.
func (s *SSESource) Done() <-chan struct{} {
	return s.done
}

func (s *SSESource) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	return nil
}

func (s *SSESource) run() {
	defer close(s.done)
	err := s.read()
	if s.ctx.Err() != nil {
		return
	}
	if err == nil {
		err = ErrStreamEnded
	}
	log.Warn().Err(err).Str("url", s.url).Msg("event stream failed")
	s.fail(err)
}

func (s *SSESource) read() error {
	resp, err := s.client.R().
		SetContext(s.ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		Get(s.url)
	if err != nil {
		return errors.Wrap(err, "open event stream")
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()
	if resp.StatusCode() >= 400 {
		return errors.Errorf("event stream returned status %d", resp.StatusCode())
	}
	return Parse(body, s.dispatch)
}

// Parse reads SSE frames from r and calls emit for each event ended by a
// blank line. An unterminated event at EOF is dropped.
func Parse(r io.Reader, emit func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)

	var (
		name string
		id   string
		data []string
	)
	flush := func() {
		if len(data) == 0 {
			name = ""
			return
		}
		ev := Event{Name: name, ID: id, Data: strings.Join(data, "\n")}
		if ev.Name == "" {
			ev.Name = DefaultEventName
		}
		emit(ev)
		name, data = "", nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		case "id":
			id = value
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read event stream")
	}
	return nil
}

// HTTPDialer opens SSE sources under a server base URL.
type HTTPDialer struct {
	Client *resty.Client
	// Path is a format string receiving the escaped scope.
	Path string
}

var _ Dialer = (*HTTPDialer)(nil)

func (d *HTTPDialer) Open(_ context.Context, scope string, names []string) (Source, error) {
	if d.Client == nil {
		return nil, errors.New("missing http client")
	}
	path := d.Path
	if path == "" {
		path = DefaultEventsPath
	}
	u := strings.Replace(path, "%s", url.PathEscape(scope), 1)
	if len(names) > 0 {
		u += "?events=" + url.QueryEscape(strings.Join(names, ","))
	}
	return NewSSESource(d.Client, u), nil
}
