// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: fixed-size buffer reuse and private work queues.

package api

import "time"

// BufferPool hands out reusable buffers of one fixed size.
//
// A buffer passed to FreeBuffer must not be touched by its previous borrower
// again, and must have been obtained from the same pool. Neither rule is
// enforced beyond a length check.
type BufferPool interface {
	// AllocateBuffer returns a free buffer, growing the pool when none is free.
	AllocateBuffer() []byte

	// FreeBuffer returns a buffer to the pool.
	FreeBuffer(buf []byte) error

	// BufferSize is the fixed length of every buffer in the pool.
	BufferSize() int

	// Stats exposes accounting for observability.
	Stats() BufferPoolStats
}

// WaitCallback is the unit of work queued on a WorkQueue. A returned error is
// reported the same way as a panic.
type WaitCallback func(state any) error

// WorkQueue runs callbacks on a private set of background workers.
type WorkQueue interface {
	// QueueWorkItem schedules cb to be called with state.
	QueueWorkItem(cb WaitCallback, state any) error

	// Shutdown stops the pool, dropping queued items, and waits up to grace
	// for running items to finish.
	Shutdown(grace time.Duration) error
}

// BufferPoolStats aggregates buffer allocation/reuse stats.
type BufferPoolStats struct {
	Name         string
	TotalBuffers int64
	FreeBuffers  int64
	InUse        int64
	BufferSize   int
	Expansions   int64
}

// ThreadPoolStats is a point-in-time view of a worker pool.
type ThreadPoolStats struct {
	Name         string
	Threads      int
	Idle         int
	MinThreads   int
	MaxThreads   int
	Queued       int
	Completed    int64
	Failed       int64
	Dropped      int64
	Replaced     int64
	ShuttingDown bool
}
