// Package monitor lets the owner of a scheduler watch it drain.
package monitor

import (
	"context"
	"time"

	"priosched/internal/logx"
	"priosched/internal/sched"
)

const defaultInterval = 50 * time.Millisecond

// QueueObserver is the read side of sched.Scheduler.
type QueueObserver interface {
	IsQueueEmpty() bool
	GetLatencyStats() sched.LatencyStats
}

// Poller checks a scheduler on every tick of a TickClock.
type Poller struct {
	Interval time.Duration
	Log      logx.Logger
}

// Until blocks until q reports an empty queue or ctx is done. It returns the
// number of ticks it waited.
func (p Poller) Until(ctx context.Context, q QueueObserver) (int64, error) {
	if q.IsQueueEmpty() {
		return 0, nil
	}
	interval := p.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	clock := NewTickClock(1)
	clock.Start(interval)
	defer clock.Stop()

	for {
		select {
		case <-ctx.Done():
			return clock.Count(), ctx.Err()
		case <-clock.Ch:
		}

		st := q.GetLatencyStats()
		if q.IsQueueEmpty() {
			p.Log.Debug("queue empty", logx.Int64("ticks", clock.Count()), logx.Uint64("samples", st.Samples))
			return clock.Count(), nil
		}
		p.Log.Trace("queue busy",
			logx.Int64("tick", clock.Count()),
			logx.Uint64("samples", st.Samples),
			logx.Float64("latency_max_ms", st.Max),
		)
	}
}
