package sched

import (
	"fmt"
	"strings"

	"priosched/internal/logx"
)

// StopPolicy decides what Terminate does with tasks still queued.
type StopPolicy int

const (
	// StopDrain lets workers finish the whole backlog before exiting.
	StopDrain StopPolicy = iota
	// StopAbandon discards queued tasks; tasks already running still finish.
	StopAbandon
)

func (p StopPolicy) String() string {
	switch p {
	case StopDrain:
		return "drain"
	case StopAbandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// ParseStopPolicy maps "drain" / "abandon" to a StopPolicy. Empty means drain.
func ParseStopPolicy(s string) (StopPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drain":
		return StopDrain, nil
	case "abandon":
		return StopAbandon, nil
	default:
		return StopDrain, fmt.Errorf("%w: %q", ErrInvalidStopPolicy, s)
	}
}

// Option configures an Engine at construction.
type Option func(*options)

type options struct {
	log         logx.Logger
	policy      StopPolicy
	ids         *IDGenerator
	onEvent     func(StatusEvent)
	onTaskError func(error)
}

func defaultOptions() options {
	return options{
		log:    logx.Nop(),
		policy: StopDrain,
	}
}

func WithLogger(log logx.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithStopPolicy(p StopPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithIDGenerator makes the engine draw task ids from g, so that several
// engines sharing g never issue the same id.
func WithIDGenerator(g *IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithEventHook registers fn for every StatusEvent.
// fn runs on producer and worker goroutines and must be safe for concurrent use.
// Calls are not ordered across goroutines: a Finish may arrive before the
// Enqueue of the same task. Event.Time is stamped in causal order.
func WithEventHook(fn func(StatusEvent)) Option {
	return func(o *options) { o.onEvent = fn }
}

// WithTaskErrorHook registers fn for every recovered task panic (a *TaskPanic).
func WithTaskErrorHook(fn func(error)) Option {
	return func(o *options) { o.onTaskError = fn }
}
