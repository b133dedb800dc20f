package sched

import (
	"sync"
	"time"
)

// LatencyStats is a snapshot of queue-to-execution latency, in milliseconds.
// Both bounds stay at 0 until the first task has executed. That first sample
// sets Min and Max together, so Min jumps from 0 to it once; from then on Min
// only lowers and Max only raises.
type LatencyStats struct {
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Samples uint64  `json:"samples"`
}

// Avg returns half the spread between Max and Min.
// It is not an arithmetic mean of the samples.
func (s LatencyStats) Avg() float64 {
	return (s.Max - s.Min) / 2.0
}

// latencyAccumulator tracks the running min/max of task latencies.
type latencyAccumulator struct {
	mu    sync.Mutex
	stats LatencyStats
}

// Record folds one latency sample into the running bounds. The first sample
// sets both bounds; afterwards Min only lowers and Max only raises.
func (a *latencyAccumulator) Record(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stats.Samples == 0 {
		a.stats.Min, a.stats.Max = ms, ms
	} else {
		a.stats.Min = min(a.stats.Min, ms)
		a.stats.Max = max(a.stats.Max, ms)
	}
	a.stats.Samples++
}

func (a *latencyAccumulator) Snapshot() LatencyStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
