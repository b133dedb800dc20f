// internal/sched/task.go

package sched

import (
	"sync/atomic"
	"time"
)

// TaskID uniquely identifies a task within the id generator that issued it.
type TaskID uint64

// Func is the payload of a task. It takes no arguments and is invoked at most once.
type Func func()

// Task is one schedulable unit of work.
// It is immutable after construction except for the execute timestamp,
// which Execute records exactly once.
type Task struct {
	id         TaskID
	priority   uint32  // higher is served first
	deadline   float64 // carried for tracing, never consulted by the engine
	fn         Func
	enqueuedAt time.Time
	executedAt time.Time
	ran        atomic.Bool
}

// NewTask creates a task and stamps its enqueue time.
func NewTask(id TaskID, fn Func, priority uint32, deadline float64) *Task {
	return &Task{
		id:         id,
		priority:   priority,
		deadline:   deadline,
		fn:         fn,
		enqueuedAt: time.Now(),
	}
}

// Execute records the execute time and then runs the payload synchronously.
// A second call returns ErrTaskExecuted without touching the payload.
// Panics raised by the payload propagate to the caller.
func (t *Task) Execute() error {
	if !t.ran.CompareAndSwap(false, true) {
		return ErrTaskExecuted
	}
	t.executedAt = time.Now()
	if t.fn != nil {
		t.fn()
	}
	return nil
}

func (t *Task) ID() TaskID { return t.id }
func (t *Task) Priority() uint32 { return t.priority }
func (t *Task) Deadline() float64 { return t.deadline }
func (t *Task) EnqueuedAt() time.Time { return t.enqueuedAt }

// ExecutedAt returns the zero time until Execute has run.
func (t *Task) ExecutedAt() time.Time { return t.executedAt }

// Latency is the time the task spent waiting between construction and the
// start of its payload. It is zero before Execute.
func (t *Task) Latency() time.Duration {
	if t.executedAt.IsZero() {
		return 0
	}
	return t.executedAt.Sub(t.enqueuedAt)
}

// Before reports whether t ranks ahead of o in the queue: strictly higher
// priority first, then the lower id (FIFO for tasks from one generator).
func (t *Task) Before(o *Task) bool {
	if t.priority != o.priority {
		return t.priority > o.priority
	}
	return t.id < o.id
}

// IDGenerator hands out increasing task ids. Each engine owns one unless a
// shared generator is passed with WithIDGenerator.
type IDGenerator struct {
	last atomic.Uint64
}

// Next returns the next id. The first id is 1.
func (g *IDGenerator) Next() TaskID {
	return TaskID(g.last.Add(1))
}
