// File: core/concurrency/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-pool/api"
)

// Option customizes a ThreadPool.
type Option func(*ThreadPool)

// WithLogger overrides the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(tp *ThreadPool) {
		tp.log = l
	}
}

// WithPollInterval bounds how long an idle worker waits on the queue before
// re-checking the shutdown latch and its idle timeout.
func WithPollInterval(d time.Duration) Option {
	return func(tp *ThreadPool) {
		if d > 0 {
			tp.pollInterval = d
		}
	}
}

// WithIdleTimeout sets how long a worker above MinThreads may stay idle
// before it retires.
func WithIdleTimeout(d time.Duration) Option {
	return func(tp *ThreadPool) {
		if d > 0 {
			tp.idleTimeout = d
		}
	}
}

// WithShutdownGrace sets the grace period used by Close.
func WithShutdownGrace(d time.Duration) Option {
	return func(tp *ThreadPool) {
		if d >= 0 {
			tp.shutdownGrace = d
		}
	}
}

// WithThreadPriority sets the initial worker thread priority.
func WithThreadPriority(p api.ThreadPriority) Option {
	return func(tp *ThreadPool) {
		if p.Valid() {
			tp.priority = p
		}
	}
}
