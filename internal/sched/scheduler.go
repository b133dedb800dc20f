// internal/sched/scheduler.go

package sched

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"priosched/internal/logx"
)

// State is the engine lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Engine is a fixed pool of workers serving a priority-ordered backlog.
//
// Workers are spawned by New and stay parked until Start. Schedule may be
// called before Start; nothing is lost. Terminate stops the pool according
// to the configured StopPolicy and joins every worker.
type Engine struct {
	workers int
	policy  StopPolicy
	log     logx.Logger
	ids     *IDGenerator

	onEvent     func(StatusEvent)
	onTaskError func(error)

	mu       sync.Mutex // protects everything below up to wg
	cond     *sync.Cond // signalled on empty->non-empty, Start and Terminate
	queue    *taskQueue
	state    State
	live     int // workers that have not exited yet
	inFlight int
	idle     bool
	idleCh   chan struct{} // closed while idle
	trace    *csvTrace

	wg       sync.WaitGroup
	termOnce sync.Once

	lat       latencyAccumulator
	queued    atomic.Int64 // mirror of queue.Len() for lock-free reads
	executed  atomic.Uint64
	failed    atomic.Uint64
	rejected  atomic.Uint64
	discarded atomic.Uint64
}

// Snapshot is a point-in-time view for diagnostics.
// Executed counts every task that ran, including the Failed ones.
type Snapshot struct {
	State      State
	Workers    int
	Live       int
	Queued     int
	InFlight   int
	Executed   uint64
	Failed     uint64
	Rejected   uint64
	Discarded  uint64
	StopPolicy StopPolicy
	Latency    LatencyStats
}

// New creates an engine with the given number of workers and spawns them.
// The workers wait until Start is called.
func New(workers int, opts ...Option) (*Engine, error) {
	if workers <= 0 {
		return nil, ErrInvalidWorkers
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.policy != StopDrain && o.policy != StopAbandon {
		return nil, ErrInvalidStopPolicy
	}
	if o.ids == nil {
		o.ids = &IDGenerator{}
	}

	idleCh := make(chan struct{})
	close(idleCh)

	e := &Engine{
		workers:     workers,
		policy:      o.policy,
		log:         o.log.With(logx.String("comp", "sched")),
		ids:         o.ids,
		onEvent:     o.onEvent,
		onTaskError: o.onTaskError,
		queue:       newTaskQueue(),
		state:       StateCreated,
		live:        workers,
		idle:        true,
		idleCh:      idleCh,
	}
	e.cond = sync.NewCond(&e.mu)

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker(i)
	}

	e.log.Debug("scheduler created", logx.Int("workers", workers), logx.String("stop_policy", o.policy.String()))
	return e, nil
}

// EnableCSVTrace writes every subsequent StatusEvent to a CSV file at path.
// Rows are written by a background goroutine, so Schedule only waits on the
// trace when the writer falls thousands of rows behind. Rows from different
// goroutines may land out of order; sort by timestamp for the causal order.
// The file is closed by Terminate.
func (e *Engine) EnableCSVTrace(path string) error {
	tr, err := newCSVTrace(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	if e.state == StateTerminated {
		e.mu.Unlock()
		_ = tr.Close()
		return ErrTerminated
	}
	prev := e.trace
	e.trace = tr
	e.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Schedule enqueues fn. Misuse (nil fn, or a call after Terminate) is logged
// and counted as rejected.
func (e *Engine) Schedule(fn Func, priority uint32, deadline float64) {
	if _, err := e.Submit(fn, priority, deadline); err != nil {
		e.log.Warn("schedule rejected", logx.Uint32("priority", priority), logx.Err(err))
	}
}

// Submit is Schedule with the assigned id and the rejection reason returned.
func (e *Engine) Submit(fn Func, priority uint32, deadline float64) (TaskID, error) {
	if fn == nil {
		e.rejected.Add(1)
		return 0, ErrNilFunc
	}

	e.mu.Lock()
	if !e.acceptingLocked() {
		e.mu.Unlock()
		e.rejected.Add(1)
		return 0, ErrTerminated
	}
	t := NewTask(e.ids.Next(), fn, priority, deadline)
	e.queue.Insert(t)
	e.queued.Store(int64(e.queue.Len()))
	e.busyLocked()
	if e.queue.Len() == 1 {
		e.cond.Broadcast()
	}
	tr := e.trace
	e.mu.Unlock()

	e.emit(tr, StatusEvent{Time: t.enqueuedAt, Kind: StatusEnqueue, TaskID: t.id, Priority: t.priority, Worker: -1})
	return t.id, nil
}

// acceptingLocked reports whether a new task would still be served.
// While draining that needs a live worker and the drain policy.
func (e *Engine) acceptingLocked() bool {
	switch e.state {
	case StateCreated, StateRunning:
		return true
	case StateDraining:
		return e.policy == StopDrain && e.live > 0
	default:
		return false
	}
}

// Start lets the workers begin consuming. It is a no-op once running.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateCreated:
		e.state = StateRunning
		e.cond.Broadcast()
		e.log.Info("scheduler started", logx.Int("workers", e.workers), logx.Int("queued", e.queue.Len()))
	case StateRunning:
	default:
		e.log.Warn("start ignored", logx.String("state", e.state.String()))
	}
}

// Terminate stops consumption and blocks until every worker has exited.
// With StopDrain the backlog is finished first; with StopAbandon it is
// discarded. Calling it again returns once the first call has completed.
// It must not be called from inside a task.
func (e *Engine) Terminate() {
	e.termOnce.Do(e.terminate)
}

func (e *Engine) terminate() {
	begin := time.Now()
	e.mu.Lock()
	from := e.state
	e.state = StateDraining
	var dropped []*Task
	if e.policy == StopAbandon {
		dropped = e.queue.Drain()
		e.queued.Store(0)
		e.idleLocked()
	}
	e.cond.Broadcast()
	tr := e.trace
	backlog := e.queue.Len()
	e.mu.Unlock()

	for _, t := range dropped {
		e.discarded.Add(1)
		e.emit(tr, StatusEvent{Kind: StatusDiscard, TaskID: t.id, Priority: t.priority, Worker: -1})
	}
	e.log.Info("scheduler stopping",
		logx.String("from", from.String()),
		logx.String("stop_policy", e.policy.String()),
		logx.Int("backlog", backlog),
		logx.Int("discarded", len(dropped)),
	)

	e.wg.Wait()

	e.mu.Lock()
	e.state = StateTerminated
	tr = e.trace
	e.trace = nil
	e.mu.Unlock()

	if tr != nil {
		if err := tr.Close(); err != nil {
			e.log.Warn("trace close failed", logx.Err(err))
		}
	}

	e.log.Info("scheduler terminated",
		logx.Uint64("executed", e.executed.Load()),
		logx.Uint64("failed", e.failed.Load()),
		logx.Uint64("discarded", e.discarded.Load()),
		logx.Any("latency", e.lat.Snapshot()),
		logx.Duration("stop_took", time.Since(begin)),
	)
}

// IsQueueEmpty reports whether no task is queued right now. The answer may be
// stale by the time the caller looks at it.
func (e *Engine) IsQueueEmpty() bool {
	return e.queued.Load() == 0
}

// GetLatencyStats returns the latency bounds observed so far.
func (e *Engine) GetLatencyStats() LatencyStats {
	return e.lat.Snapshot()
}

// WaitIdle blocks until the queue is empty and no task is running, or ctx is done.
// Tasks queued before Start keep the engine busy until it is started.
func (e *Engine) WaitIdle(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	ch := e.idleCh
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	s := Snapshot{
		State:      e.state,
		Workers:    e.workers,
		Live:       e.live,
		Queued:     e.queue.Len(),
		InFlight:   e.inFlight,
		StopPolicy: e.policy,
	}
	e.mu.Unlock()

	s.Executed = e.executed.Load()
	s.Failed = e.failed.Load()
	s.Rejected = e.rejected.Load()
	s.Discarded = e.discarded.Load()
	s.Latency = e.lat.Snapshot()
	return s
}

// busyLocked leaves the idle state after an insert.
func (e *Engine) busyLocked() {
	if e.idle {
		e.idle = false
		e.idleCh = make(chan struct{})
	}
}

// idleLocked enters the idle state when nothing is queued or running.
func (e *Engine) idleLocked() {
	if !e.idle && e.queue.Empty() && e.inFlight == 0 {
		e.idle = true
		close(e.idleCh)
	}
}

// readyLocked is the worker wake condition.
func (e *Engine) readyLocked() bool {
	switch e.state {
	case StateRunning:
		return !e.queue.Empty()
	case StateDraining, StateTerminated:
		return true
	default:
		return false
	}
}

func (e *Engine) worker(idx int) {
	defer e.wg.Done()
	log := e.log.With(logx.Int("worker", idx))

	for {
		e.mu.Lock()
		for !e.readyLocked() {
			e.cond.Wait()
		}
		if e.queue.Empty() {
			// Only reachable while stopping: the backlog is done.
			e.live--
			e.mu.Unlock()
			log.Trace("worker exited")
			return
		}
		t := e.queue.Pop()
		e.queued.Store(int64(e.queue.Len()))
		e.inFlight++
		tr := e.trace
		e.mu.Unlock()

		e.run(t, idx, tr, log)

		e.mu.Lock()
		e.inFlight--
		e.idleLocked()
		e.mu.Unlock()
	}
}

func (e *Engine) run(t *Task, idx int, tr *csvTrace, log logx.Logger) {
	e.emit(tr, StatusEvent{Kind: StatusDispatch, TaskID: t.id, Priority: t.priority, Worker: idx})
	if log.Enabled(logx.LevelDebug) {
		log.Debug("executing task", logx.Uint64("task_id", uint64(t.id)), logx.Uint32("priority", t.priority))
	}

	err := execute(t)
	lat := t.Latency()
	e.lat.Record(lat)
	e.executed.Add(1)

	if err != nil {
		e.failed.Add(1)
		fields := []logx.Field{logx.Uint64("task_id", uint64(t.id)), logx.Err(err)}
		if tp, ok := err.(*TaskPanic); ok {
			fields = append(fields, logx.Stack(tp.Stack))
		}
		log.Error("task panicked", fields...)
		if e.onTaskError != nil {
			e.onTaskError(err)
		}
		e.emit(tr, StatusEvent{Kind: StatusPanic, TaskID: t.id, Priority: t.priority, Worker: idx, Latency: lat, Err: err})
		return
	}
	e.emit(tr, StatusEvent{Kind: StatusFinish, TaskID: t.id, Priority: t.priority, Worker: idx, Latency: lat})
}

// execute runs the task and converts a payload panic into a *TaskPanic.
func execute(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskPanic{ID: t.id, Value: r, Stack: string(debug.Stack())}
		}
	}()
	return t.Execute()
}

func (e *Engine) emit(tr *csvTrace, ev StatusEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if tr != nil {
		tr.Record(ev)
	}
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

var _ Scheduler = (*Engine)(nil)
