package frame

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Loop is a Scheduler driven by a ticker. All callbacks run on the goroutine
// that called Run.
type Loop struct {
	queue
	interval time.Duration
}

var _ Scheduler = (*Loop)(nil)

func NewLoop(fps int) *Loop {
	return &Loop{interval: interval(fps)}
}

func (l *Loop) Interval() time.Duration {
	return l.interval
}

func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.interval)
	defer t.Stop()
	log.Debug().Dur("interval", l.interval).Msg("frame loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			l.tick(now)
		}
	}
}
