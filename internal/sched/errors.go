package sched

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWorkers          = errors.New("sched: worker count must be positive")
	ErrInvalidStopPolicy       = errors.New("sched: unknown stop policy")
	ErrUnknownImplementation   = errors.New("sched: unknown scheduler implementation")
	ErrDuplicateImplementation = errors.New("sched: scheduler implementation already registered")
	ErrNilFunc                 = errors.New("sched: task func is nil")
	ErrTaskExecuted            = errors.New("sched: task already executed")
	ErrTerminated              = errors.New("sched: scheduler terminated")
)

// TaskPanic is the error recorded when a task payload panics.
// The worker that ran the task recovers, logs it and keeps serving.
type TaskPanic struct {
	ID    TaskID
	Value any
	Stack string
}

func (e *TaskPanic) Error() string {
	return fmt.Sprintf("task %d panicked: %v", e.ID, e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *TaskPanic) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
