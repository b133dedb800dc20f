package sched

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"timestamp", "event", "task_id", "priority", "worker", "latency_ms", "error"}

const traceBuffer = 4096

// csvTrace appends one row per StatusEvent to a CSV file.
// Rows are handed to a writer goroutine; callers only block while it is
// more than traceBuffer rows behind. The writer flushes whenever it has
// caught up, so a crashed run still leaves a usable trace.
type csvTrace struct {
	mu     sync.RWMutex // guards closed against sends on a closed rows
	closed bool
	rows   chan []string
	done   chan struct{}

	file *os.File
	w    *csv.Writer
	err  error
}

func newCSVTrace(path string) (*csvTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sched: create trace %q: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("sched: write trace header: %w", err)
	}
	w.Flush()

	c := &csvTrace{
		rows: make(chan []string, traceBuffer),
		done: make(chan struct{}),
		file: f,
		w:    w,
	}
	go c.loop()
	return c, nil
}

func (c *csvTrace) loop() {
	defer close(c.done)
	for rec := range c.rows {
		if err := c.w.Write(rec); err != nil && c.err == nil {
			c.err = err
		}
		if len(c.rows) == 0 {
			c.w.Flush()
		}
	}
	c.w.Flush()
}

func (c *csvTrace) Record(ev StatusEvent) {
	errText := ""
	if ev.Err != nil {
		errText = ev.Err.Error()
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		strconv.FormatUint(uint64(ev.Priority), 10),
		strconv.Itoa(ev.Worker),
		strconv.FormatFloat(float64(ev.Latency)/float64(time.Millisecond), 'f', 4, 64),
		errText,
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.rows <- rec
}

// Close waits for the queued rows to be written and closes the file.
func (c *csvTrace) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.rows)
	c.mu.Unlock()

	<-c.done
	err := c.err
	if err == nil {
		err = c.w.Error()
	}
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	return err
}
