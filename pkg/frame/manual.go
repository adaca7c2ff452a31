package frame

import "time"

// Manual is a Scheduler that only advances when Tick is called.
type Manual struct {
	queue
	now  time.Time
	step time.Duration
}

var _ Scheduler = (*Manual)(nil)

func NewManual(start time.Time, fps int) *Manual {
	return &Manual{now: start, step: interval(fps)}
}

// Tick advances the clock by one frame and runs the callbacks scheduled
// before the call. It returns how many ran.
func (m *Manual) Tick() int {
	m.now = m.now.Add(m.step)
	return m.tick(m.now)
}

// Drain ticks until nothing is pending or max ticks have run, and returns the
// number of ticks.
func (m *Manual) Drain(max int) int {
	n := 0
	for n < max && m.Pending() > 0 {
		m.Tick()
		n++
	}
	return n
}

func (m *Manual) Now() time.Time {
	return m.now
}
