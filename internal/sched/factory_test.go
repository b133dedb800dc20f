package sched

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

// fakeScheduler runs tasks inline on Start, in priority order.
type fakeScheduler struct {
	mu         sync.Mutex
	workers    int
	pending    []*Task
	started    bool
	terminated int
	ids        IDGenerator
}

func (f *fakeScheduler) Schedule(fn Func, priority uint32, deadline float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, NewTask(f.ids.Next(), fn, priority, deadline))
}

func (f *fakeScheduler) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	slices.SortFunc(f.pending, func(a, b *Task) int {
		switch {
		case a == b:
			return 0
		case a.Before(b):
			return -1
		default:
			return 1
		}
	})
	for _, t := range f.pending {
		_ = t.Execute()
	}
	f.pending = nil
}

func (f *fakeScheduler) Terminate() {
	f.mu.Lock()
	f.terminated++
	f.mu.Unlock()
}

func (f *fakeScheduler) IsQueueEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0
}

func (f *fakeScheduler) GetLatencyStats() LatencyStats { return LatencyStats{} }

func TestOpenDefaultImplementation(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "monitor", " MONITOR "} {
		s, err := Open(name, 2)
		if err != nil {
			t.Fatalf("Open(%q): %v", name, err)
		}
		if _, ok := s.(*Engine); !ok {
			t.Fatalf("Open(%q) returned %T, want *Engine", name, s)
		}
		s.Terminate()
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	if _, err := Open("TaskSchedulerLib.dll", 2); !errors.Is(err, ErrUnknownImplementation) {
		t.Fatalf("unknown name err = %v", err)
	}
	s, err := Open(DefaultImplementation, 0)
	if !errors.Is(err, ErrInvalidWorkers) {
		t.Fatalf("zero workers err = %v", err)
	}
	if s != nil {
		t.Fatalf("Open returned a partial scheduler: %#v", s)
	}
}

func TestRegisterFake(t *testing.T) {
	const name = "inline-fake"
	fake := &fakeScheduler{}
	if err := Register(name, func(workers int, _ ...Option) (Scheduler, error) {
		fake.workers = workers
		return fake, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer Unregister(name)

	if err := Register(name, func(int, ...Option) (Scheduler, error) { return nil, nil }); !errors.Is(err, ErrDuplicateImplementation) {
		t.Fatalf("duplicate Register err = %v", err)
	}
	if !slices.Contains(Implementations(), name) {
		t.Fatalf("Implementations() = %v, missing %q", Implementations(), name)
	}

	s, err := Open(name, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var order []uint32
	for _, p := range []uint32{5, 1, 9} {
		p := p
		s.Schedule(func() { order = append(order, p) }, p, 0)
	}
	s.Start()
	s.Terminate()

	if fake.workers != 3 || fake.terminated != 1 {
		t.Fatalf("fake workers=%d terminated=%d", fake.workers, fake.terminated)
	}
	if !slices.Equal(order, []uint32{9, 5, 1}) {
		t.Fatalf("order = %v, want [9 5 1]", order)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	if err := Register("  ", func(int, ...Option) (Scheduler, error) { return nil, nil }); err == nil {
		t.Fatal("expected error for blank name")
	}
	if err := Register("nil-factory", nil); err == nil {
		t.Fatal("expected error for nil factory")
	}
}
