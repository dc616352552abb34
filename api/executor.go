// File: api/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Executor runs argument-less tasks on a bounded set of workers. It is the
// narrow view of a worker pool for callers that have no state to pass along.
type Executor interface {
	// Submit schedules task. It fails once the underlying pool is shut down.
	Submit(task func()) error

	// NumWorkers reports the workers currently on the roster.
	NumWorkers() int

	// Resize changes the worker ceiling.
	Resize(newCount int)
}
