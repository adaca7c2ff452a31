package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-go-golems/livelog/pkg/frame"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultMaxBlockSize = 100

// Handler consumes one block of items. A block is never empty.
type Handler[T any] func(block []T)

type Options[T any] struct {
	Handler Handler[T]
	// Initial items are queued before the first tick.
	Initial []T
	// Streaming drains one item per tick unless the queue is backed up
	// beyond MaxBlockSize.
	Streaming    bool
	MaxBlockSize int
	Frames       frame.Scheduler
	// Name labels log entries.
	Name string
}

// Scheduler queues items and hands them to a handler in blocks, at most one
// block per frame tick.
type Scheduler[T any] struct {
	opts Options[T]

	mu       sync.Mutex
	queue    []T
	inFlight bool
	handle   frame.Handle
	closed   bool
}

func New[T any](opts Options[T]) (*Scheduler[T], error) {
	if opts.Handler == nil {
		return nil, errors.New("missing batch handler")
	}
	if opts.Frames == nil {
		return nil, errors.New("missing frame scheduler")
	}
	if opts.MaxBlockSize <= 0 {
		opts.MaxBlockSize = DefaultMaxBlockSize
	}
	s := &Scheduler[T]{opts: opts}
	if len(opts.Initial) > 0 {
		s.queue = append(s.queue, opts.Initial...)
		s.opts.Initial = nil
	}
	s.mu.Lock()
	s.requestLocked()
	s.mu.Unlock()
	return s, nil
}

// Submit queues items in order. Items submitted after Close are dropped.
func (s *Scheduler[T]) Submit(items ...T) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, items...)
	s.requestLocked()
}

// SetStreaming switches between per-item and bulk draining.
func (s *Scheduler[T]) SetStreaming(streaming bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Streaming = streaming
}

func (s *Scheduler[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Busy reports whether a drain is scheduled or running.
func (s *Scheduler[T]) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Close cancels a scheduled drain and discards queued items.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.inFlight && s.handle != 0 {
		s.opts.Frames.Cancel(s.handle)
		s.handle = 0
	}
	s.queue = nil
}

func (s *Scheduler[T]) requestLocked() {
	if s.inFlight || s.closed || len(s.queue) == 0 {
		return
	}
	s.inFlight = true
	s.handle = s.opts.Frames.Schedule(s.drain)
}

func (s *Scheduler[T]) blockSizeLocked() int {
	n, limit := len(s.queue), s.opts.MaxBlockSize
	switch {
	case s.opts.Streaming && n > limit:
		return limit
	case s.opts.Streaming:
		return 1
	case n > limit:
		return limit
	default:
		return n
	}
}

func (s *Scheduler[T]) drain(time.Time) {
	s.mu.Lock()
	s.handle = 0
	if s.closed || len(s.queue) == 0 {
		s.inFlight = false
		s.mu.Unlock()
		return
	}
	n := s.blockSizeLocked()
	block := make([]T, n)
	copy(block, s.queue[:n])
	s.queue = s.queue[n:]
	s.mu.Unlock()

	s.run(block)

	s.mu.Lock()
	s.inFlight = false
	s.requestLocked()
	s.mu.Unlock()
}

func (s *Scheduler[T]) run(block []T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("scheduler", s.opts.Name).
				Int("block", len(block)).
				Str("panic", fmt.Sprint(r)).
				Msg("batch handler panicked")
		}
	}()
	s.opts.Handler(block)
}
