// File: adapters/executor_adapter.go
// Package adapters provides glue between the pools and the api contracts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter implements api.Executor on top of a concurrency.ThreadPool so
// callers that only know how to Submit(func()) can share a private pool.

package adapters

import (
	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/core/concurrency"
)

// ExecutorAdapter wraps a ThreadPool to satisfy the api.Executor contract.
type ExecutorAdapter struct {
	pool *concurrency.ThreadPool
}

// NewExecutorAdapter exposes pool as an api.Executor. The pool stays owned by
// the caller; Close on the adapter shuts it down.
func NewExecutorAdapter(pool *concurrency.ThreadPool) *ExecutorAdapter {
	return &ExecutorAdapter{pool: pool}
}

// Submit queues task. A panic inside task is reported through the pool's
// task exception listeners.
func (ea *ExecutorAdapter) Submit(task func()) error {
	if task == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "nil task")
	}
	return ea.pool.QueueWorkItem(func(any) error {
		task()
		return nil
	}, nil)
}

// NumWorkers returns the current roster size.
func (ea *ExecutorAdapter) NumWorkers() int {
	return len(ea.pool.Threads())
}

// Resize sets the pool's MaxThreads, which also caps MinThreads.
func (ea *ExecutorAdapter) Resize(newCount int) {
	ea.pool.SetMaxThreads(newCount)
}

// Close shuts the pool down with its configured grace period.
func (ea *ExecutorAdapter) Close() error {
	return ea.pool.Close()
}

var _ api.Executor = (*ExecutorAdapter)(nil)
