package events

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type shared struct {
	key     string
	src     Source
	refs    int
	broken  bool
	closed  bool
	started sync.Once
}

// Registry hands out subscriptions and shares one Source between all enabled
// subscriptions with the same scope and event names.
type Registry struct {
	dialer Dialer

	mu    sync.Mutex
	conns map[string]*shared
}

func NewRegistry(d Dialer) *Registry {
	return &Registry{dialer: d, conns: map[string]*shared{}}
}

// Subscribe returns a disabled subscription. onError may be nil.
func (r *Registry) Subscribe(scope string, names []string, onEvent Listener, onError func(error)) *Subscription {
	return &Subscription{
		reg:     r,
		scope:   scope,
		names:   normalizeNames(names),
		onEvent: onEvent,
		onError: onError,
	}
}

// Open is the number of live connections.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) acquire(ctx context.Context, scope string, names []string) (*shared, error) {
	key := Key(scope, names)
	r.mu.Lock()
	defer r.mu.Unlock()
	if sh, ok := r.conns[key]; ok && !sh.broken {
		sh.refs++
		return sh, nil
	}
	if r.dialer == nil {
		return nil, errors.New("missing event dialer")
	}
	src, err := r.dialer.Open(ctx, scope, names)
	if err != nil {
		return nil, errors.Wrapf(err, "open events for %s", scope)
	}
	sh := &shared{key: key, src: src, refs: 1}
	r.conns[key] = sh
	log.Debug().Str("key", key).Msg("event connection opened")
	return sh, nil
}

// release drops one reference. A broken connection is closed and forgotten
// right away so the next enable dials a fresh one.
func (r *Registry) release(sh *shared, broken bool) {
	r.mu.Lock()
	sh.refs--
	if broken {
		sh.broken = true
	}
	done := sh.refs <= 0 || sh.broken
	if done && r.conns[sh.key] == sh {
		delete(r.conns, sh.key)
	}
	closeNow := done && !sh.closed
	if closeNow {
		sh.closed = true
	}
	r.mu.Unlock()

	if closeNow {
		if err := sh.src.Close(); err != nil {
			log.Warn().Err(err).Str("key", sh.key).Msg("close event connection")
		}
		log.Debug().Str("key", sh.key).Bool("broken", broken).Msg("event connection closed")
	}
}

// Subscription is a consumer's interest in a set of events for one scope.
type Subscription struct {
	reg     *Registry
	scope   string
	names   []string
	onEvent Listener
	onError func(error)

	mu      sync.Mutex
	enabled bool
	closed  bool
	sh      *shared
	removes []func()
}

func (s *Subscription) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Subscription) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Connected reports whether the subscription currently holds a connection.
func (s *Subscription) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sh != nil
}

// SetEnabled attaches to or detaches from the shared connection. Enabling a
// subscription whose connection failed dials again.
func (s *Subscription) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("subscription closed")
	}
	s.enabled = enabled
	if !enabled {
		s.detachLocked(false)
		return nil
	}
	if s.sh != nil || len(s.names) == 0 {
		return nil
	}

	sh, err := s.reg.acquire(ctx, s.scope, s.names)
	if err != nil {
		return err
	}
	s.sh = sh
	for _, name := range s.names {
		s.removes = append(s.removes, sh.src.AddListener(name, s.deliver))
	}
	s.removes = append(s.removes, sh.src.OnError(func(err error) { s.fail(sh, err) }))
	sh.started.Do(sh.src.Start)
	return nil
}

func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.enabled = false
	s.detachLocked(false)
}

func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	live := s.sh != nil
	s.mu.Unlock()
	if live && s.onEvent != nil {
		s.onEvent(ev)
	}
}

// fail runs the error callback and then drops the broken connection. The
// subscription stays enabled but unconnected until SetEnabled is called again.
func (s *Subscription) fail(sh *shared, err error) {
	s.mu.Lock()
	current := s.sh == sh
	s.mu.Unlock()
	if !current {
		return
	}

	if s.onError != nil {
		s.onError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sh == sh {
		s.detachLocked(true)
	}
}

func (s *Subscription) detachLocked(broken bool) {
	if s.sh == nil {
		return
	}
	for _, rm := range s.removes {
		rm()
	}
	s.removes = nil
	sh := s.sh
	s.sh = nil
	s.reg.release(sh, broken)
}
