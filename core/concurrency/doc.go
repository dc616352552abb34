// File: core/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency provides ThreadPool, a private pool of OS-thread-backed
// workers that run queued callbacks without touching any process-wide pool.
//
// Workers are started lazily on the first QueueWorkItem, kept at or above
// MinThreads, grown toward MaxThreads while a backlog exists, and replaced
// automatically if their dispatch loop faults. A panic or error from a work
// item is reported to OnTaskException listeners and never kills the worker.
//
// Shutdown is a one-way latch: queued items are dropped, running items finish,
// and the caller waits at most the grace period. Workers still busy after the
// grace period are detached and reported, never killed.
package concurrency
