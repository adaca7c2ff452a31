package frame

import (
	"sync"
	"time"
)

// DefaultFPS is the refresh rate used when none is configured.
const DefaultFPS = 60

type Handle uint64

// Callback receives the time of the tick it runs on.
type Callback func(now time.Time)

// Scheduler runs callbacks once, on the next frame tick.
//
// Callbacks scheduled while a tick is running wait for the following tick.
type Scheduler interface {
	Schedule(fn Callback) Handle
	Cancel(h Handle)
}

type entry struct {
	h  Handle
	fn Callback
}

// queue is the FIFO shared by Loop and Manual.
type queue struct {
	mu      sync.Mutex
	next    Handle
	pending []entry
}

func (q *queue) Schedule(fn Callback) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.pending = append(q.pending, entry{h: q.next, fn: fn})
	return q.next
}

func (q *queue) Cancel(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.pending {
		if e.h == h {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// Pending is the number of callbacks waiting for a tick.
func (q *queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *queue) tick(now time.Time) int {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, e := range batch {
		e.fn(now)
	}
	return len(batch)
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return time.Second / time.Duration(fps)
}
