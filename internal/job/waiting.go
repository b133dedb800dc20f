// Package job provides ready-made task payloads for the driver and tests.
package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackebrot/go-fibonacci"

	"priosched/internal/sched"
)

// Noop returns a payload that does nothing.
func Noop() sched.Func {
	return func() {}
}

// SleepWork returns a payload that just sleeps for the given duration.
func SleepWork(d time.Duration) sched.Func {
	return func() {
		time.Sleep(d)
	}
}

// FibWork returns a CPU-bound payload computing the nth Fibonacci number recursively.
func FibWork(n int) sched.Func {
	strategy := fibonacci.NewRecursive()
	return func() {
		_ = strategy.Compute(n)
	}
}

// PanicWork returns a payload that panics with v.
func PanicWork(v any) sched.Func {
	return func() {
		panic(v)
	}
}

// Kind names a payload family selectable from the command line.
type Kind string

const (
	KindNoop  Kind = "noop"
	KindSleep Kind = "sleep"
	KindFib   Kind = "fib"
)

// Kinds lists the accepted payload names.
func Kinds() []Kind { return []Kind{KindNoop, KindSleep, KindFib} }

// ParseKind validates a payload name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("job: unknown work kind %q", s)
}

// Build returns the payload for task number i of kind k.
// Sleep and Fib vary with i so a run has a spread of task costs.
func (k Kind) Build(i int) sched.Func {
	switch k {
	case KindSleep:
		return SleepWork(time.Duration(1+i%5) * time.Millisecond)
	case KindFib:
		return FibWork(15 + i%10)
	default:
		return Noop()
	}
}
