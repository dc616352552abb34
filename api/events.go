// File: api/events.go
// Package api defines notification payloads emitted by the pools.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// PoolExpandedEvent is emitted each time a buffer pool creates a new buffer.
// TotalBuffers*BufferSize is the pool's current memory footprint.
type PoolExpandedEvent struct {
	Pool         string
	TotalBuffers int64
	BufferSize   int
}

// TaskExceptionEvent reports a work item that panicked or returned an error.
type TaskExceptionEvent struct {
	Pool       string
	Worker     string
	State      any
	Err        error
	EnqueuedAt time.Time
}

// ShuttingDownEvent is emitted once when a worker pool begins shutdown.
type ShuttingDownEvent struct {
	Pool    string
	Dropped int
}
