package sched

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultImplementation is the name the built-in Engine registers under.
const DefaultImplementation = "monitor"

// Scheduler is the capability the rest of the process programs against.
// Implementations are looked up by name with Open.
type Scheduler interface {
	// Schedule enqueues fn with the given priority. Higher priorities run first.
	// deadline is recorded with the task but not enforced.
	Schedule(fn Func, priority uint32, deadline float64)

	// Start lets the workers begin consuming. Idempotent.
	Start()

	// Terminate stops the scheduler and joins its workers. Idempotent.
	Terminate()

	// IsQueueEmpty is a point-in-time polling aid, not a synchronization primitive.
	IsQueueEmpty() bool

	// GetLatencyStats returns the queue-to-execution latency bounds so far.
	GetLatencyStats() LatencyStats
}

// Factory builds a Scheduler with a fixed number of workers.
type Factory func(workers int, opts ...Option) (Scheduler, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{factories: map[string]Factory{}}

func init() {
	MustRegister(DefaultImplementation, func(workers int, opts ...Option) (Scheduler, error) {
		e, err := New(workers, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	})
}

// Register makes f available to Open under name. Names are case-insensitive.
func Register(name string, f Factory) error {
	key := normalizeName(name)
	if key == "" || f == nil {
		return fmt.Errorf("sched: register %q: name and factory are required", name)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, dup := registry.factories[key]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateImplementation, key)
	}
	registry.factories[key] = f
	return nil
}

// MustRegister is Register for package init; it panics on error.
func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// Unregister removes name. Tests use it to clean up fakes.
func Unregister(name string) {
	registry.mu.Lock()
	delete(registry.factories, normalizeName(name))
	registry.mu.Unlock()
}

// Open resolves name and builds a scheduler with the given worker count.
// An empty name selects DefaultImplementation.
func Open(name string, workers int, opts ...Option) (Scheduler, error) {
	key := normalizeName(name)
	if key == "" {
		key = DefaultImplementation
	}
	registry.mu.RLock()
	f := registry.factories[key]
	registry.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownImplementation, name, strings.Join(Implementations(), ", "))
	}
	s, err := f(workers, opts...)
	if err != nil {
		return nil, fmt.Errorf("sched: open %q: %w", key, err)
	}
	return s, nil
}

// Implementations lists the registered names in sorted order.
func Implementations() []string {
	registry.mu.RLock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	registry.mu.RUnlock()
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
