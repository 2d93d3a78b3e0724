package persist_queue

import (
	"context"

	"miniature_creator/identifiers"
)

// Task is one background persistence chain. Run executes its steps in order
// and returns the first error.
type Task struct {
	Name        string
	MiniatureID identifiers.MiniatureID
	Run         func(ctx context.Context) error
}

// Failure is a task error that was not returned to whoever enqueued it.
type Failure struct {
	Task        string
	MiniatureID identifiers.MiniatureID
	Err         error
}

type Queue interface {
	// Enqueue schedules t and returns immediately.
	Enqueue(t Task) error
	// Failures publishes failed tasks. A failure is dropped, and counted,
	// when nobody drains the channel fast enough.
	Failures() <-chan Failure
	// Wait blocks until every task enqueued so far has finished.
	Wait()
	// Stop rejects new tasks, waits for queued ones, then stops the workers.
	Stop()
}
