package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"priosched/internal/sched"
)

// fakeQueue reports non-empty for the first n polls.
type fakeQueue struct {
	busyPolls atomic.Int64
}

func (f *fakeQueue) IsQueueEmpty() bool {
	return f.busyPolls.Add(-1) < 0
}

func (f *fakeQueue) GetLatencyStats() sched.LatencyStats { return sched.LatencyStats{} }

func TestTickClockCounts(t *testing.T) {
	t.Parallel()
	c := NewTickClock(4)
	c.Start(time.Millisecond)
	defer c.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-c.Ch:
		case <-time.After(time.Second):
			t.Fatal("no tick received")
		}
	}
	if got := c.Count(); got < 3 {
		t.Fatalf("Count = %d, want >= 3", got)
	}
	c.Stop()
	c.Stop()
}

func TestPollerReturnsWhenEmpty(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	q.busyPolls.Store(3)

	ticks, err := Poller{Interval: time.Millisecond}.Until(context.Background(), q)
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if ticks < 2 {
		t.Fatalf("ticks = %d, want >= 2", ticks)
	}
}

func TestPollerImmediateWhenAlreadyEmpty(t *testing.T) {
	t.Parallel()
	ticks, err := Poller{}.Until(context.Background(), &fakeQueue{})
	if err != nil || ticks != 0 {
		t.Fatalf("Until = (%d, %v), want (0, nil)", ticks, err)
	}
}

func TestPollerHonoursContext(t *testing.T) {
	t.Parallel()
	q := &fakeQueue{}
	q.busyPolls.Store(1 << 40)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Poller{Interval: time.Millisecond}.Until(ctx, q)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestPollerWithEngine(t *testing.T) {
	t.Parallel()
	e, err := sched.New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Terminate()
	for i := 0; i < 50; i++ {
		e.Schedule(func() { time.Sleep(100 * time.Microsecond) }, uint32(i%7), 0)
	}
	e.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := (Poller{Interval: time.Millisecond}).Until(ctx, e); err != nil {
		t.Fatalf("Until: %v", err)
	}
	if !e.IsQueueEmpty() {
		t.Fatal("queue not empty after poller returned")
	}
}
