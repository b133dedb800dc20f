// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// StatusKind represents the type of scheduler event
type StatusKind int

const (
	StatusEnqueue StatusKind = iota
	StatusDispatch
	StatusFinish
	StatusPanic
	StatusDiscard
)

// StatusEvent is emitted on every task state change.
type StatusEvent struct {
	Time     time.Time
	Kind     StatusKind
	TaskID   TaskID
	Priority uint32
	Worker   int           // -1 when no worker is involved
	Latency  time.Duration // set on Finish and Panic
	Err      error         // set on Panic
}

func (sk StatusKind) String() string {
	switch sk {
	case StatusEnqueue:
		return "Enqueued"
	case StatusDispatch:
		return "Dispatch"
	case StatusFinish:
		return "Finish"
	case StatusPanic:
		return "Panic"
	case StatusDiscard:
		return "Discard"
	default:
		return "Unknown"
	}
}
