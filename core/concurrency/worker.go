// File: core/concurrency/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-pool/api"
	platform "github.com/momentics/hioload-pool/internal/concurrency"
)

// WorkerState is the lifecycle state of a single worker.
type WorkerState int32

const (
	WorkerStarting WorkerState = iota
	WorkerIdle
	WorkerExecuting
	WorkerExiting
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerIdle:
		return "idle"
	case WorkerExecuting:
		return "executing"
	case WorkerExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// WorkerInfo describes a worker for diagnostics.
type WorkerInfo struct {
	Name     string
	State    WorkerState
	ThreadID int
}

// testHookDispatch runs at the top of every dispatch iteration when set.
var testHookDispatch func()

type worker struct {
	pool *ThreadPool
	name string
	tid  int // guarded by pool.rosterMu

	state    atomic.Int32
	detached atomic.Bool
	done     chan struct{}
}

func newWorker(tp *ThreadPool, name string) *worker {
	return &worker{pool: tp, name: name, done: make(chan struct{})}
}

func (w *worker) info() WorkerInfo {
	return WorkerInfo{Name: w.name, State: WorkerState(w.state.Load()), ThreadID: w.tid}
}

// run owns an OS thread for the worker's whole life. The thread is never
// unlocked, so the runtime discards it when the goroutine exits and any
// priority change dies with it.
func (w *worker) run() {
	runtime.LockOSThread()
	defer close(w.done)

	w.pool.attach(w, platform.CurrentThreadID())
	fault := w.dispatch()
	w.state.Store(int32(WorkerExiting))
	w.pool.retire(w, fault)
}

// dispatch dequeues and executes items until the pool shuts down, the worker
// is detached or retired, or the loop itself faults.
func (w *worker) dispatch() (fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = errors.Errorf("dispatch loop panic: %v", r)
		}
	}()

	tp := w.pool
	idleSince := time.Now()
	for {
		if tp.shuttingDown.Load() || w.detached.Load() {
			return nil
		}
		if testHookDispatch != nil {
			testHookDispatch()
		}

		w.state.Store(int32(WorkerIdle))
		item, ok := tp.queue.Dequeue(tp.pollInterval)
		if !ok {
			if tp.retireIdle(w, time.Since(idleSince)) {
				return nil
			}
			continue
		}
		if tp.shuttingDown.Load() {
			// Queued while Shutdown ran, after the queue was cleared.
			tp.dropped.Add(1)
			return nil
		}

		w.execute(item)
		idleSince = time.Now()
	}
}

// execute runs one item. Items already dequeued always run to completion,
// even if Shutdown started meanwhile.
func (w *worker) execute(item WorkItem) {
	tp := w.pool
	w.state.Store(int32(WorkerExecuting))
	tp.busy.Add(1)
	err := invoke(item)
	tp.busy.Add(-1)
	tp.completed.Add(1)

	if err == nil {
		return
	}
	tp.failed.Add(1)
	tp.fireTaskException(api.TaskExceptionEvent{
		Pool:       tp.name,
		Worker:     w.name,
		State:      item.State,
		Err:        err,
		EnqueuedAt: item.EnqueuedAt,
	})
}

func invoke(item WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "work item panicked")
				return
			}
			err = errors.Errorf("work item panicked: %v", r)
		}
	}()
	return item.Callback(item.State)
}
