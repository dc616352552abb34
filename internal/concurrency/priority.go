// File: internal/concurrency/priority.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Cross-platform OS thread priority control for pool workers. A worker must
// have called runtime.LockOSThread before reading its CurrentThreadID.

package concurrency

import (
	"github.com/pkg/errors"

	"github.com/momentics/hioload-pool/api"
)

// CurrentThreadID returns the OS identifier of the calling thread, or 0
// where the platform has no usable notion of one.
func CurrentThreadID() int {
	return platformCurrentThreadID()
}

// SetThreadPriority applies p to the OS thread identified by tid.
func SetThreadPriority(tid int, p api.ThreadPriority) error {
	if !p.Valid() {
		return errors.Wrapf(api.ErrInvalidArgument, "thread priority %d", int(p))
	}
	if tid <= 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "thread id %d", tid)
	}
	return platformSetThreadPriority(tid, p)
}
