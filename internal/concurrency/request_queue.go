// File: internal/concurrency/request_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FIFO request queue with its own lock and a broadcast wake signal.

package concurrency

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// RequestQueue is an unbounded FIFO of pending items. Waiters are woken by
// closing the current wake channel, so one Enqueue wakes every idle consumer;
// the loser of the race simply finds the queue empty and waits again.
type RequestQueue[T any] struct {
	mu    sync.Mutex
	items *queue.Queue
	wake  chan struct{}
}

// NewRequestQueue returns an empty queue.
func NewRequestQueue[T any]() *RequestQueue[T] {
	return &RequestQueue[T]{
		items: queue.New(),
		wake:  make(chan struct{}),
	}
}

// Enqueue appends item and wakes waiting consumers.
func (q *RequestQueue[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items.Add(item)
	q.broadcastLocked()
	q.mu.Unlock()
}

// TryDequeue pops the head without waiting.
func (q *RequestQueue[T]) TryDequeue() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return item, false
	}
	return q.items.Remove().(T), true
}

// Dequeue pops the head, waiting at most timeout for an item to arrive.
// It also returns early (ok == false) when Wake is called.
func (q *RequestQueue[T]) Dequeue(timeout time.Duration) (item T, ok bool) {
	q.mu.Lock()
	if q.items.Length() > 0 {
		item = q.items.Remove().(T)
		q.mu.Unlock()
		return item, true
	}
	wake := q.wake
	q.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-wake:
	case <-timer.C:
	}
	return q.TryDequeue()
}

// Clear drops every pending item and returns how many were dropped.
func (q *RequestQueue[T]) Clear() int {
	q.mu.Lock()
	n := q.items.Length()
	q.items = queue.New()
	q.broadcastLocked()
	q.mu.Unlock()
	return n
}

// Wake releases every consumer blocked in Dequeue.
func (q *RequestQueue[T]) Wake() {
	q.mu.Lock()
	q.broadcastLocked()
	q.mu.Unlock()
}

// Len returns the number of pending items.
func (q *RequestQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

func (q *RequestQueue[T]) broadcastLocked() {
	close(q.wake)
	q.wake = make(chan struct{})
}
