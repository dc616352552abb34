//go:build linux
// +build linux

// File: internal/concurrency/priority_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux threads are schedulable entities with their own nice value, so
// setpriority(PRIO_PROCESS, tid) affects exactly one worker thread and can be
// issued from any thread.

package concurrency

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-pool/api"
)

var niceByPriority = map[api.ThreadPriority]int{
	api.PriorityLowest:      10,
	api.PriorityBelowNormal: 5,
	api.PriorityNormal:      0,
	api.PriorityAboveNormal: -5,
	api.PriorityHighest:     -10,
}

func platformCurrentThreadID() int {
	return unix.Gettid()
}

func platformSetThreadPriority(tid int, p api.ThreadPriority) error {
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, niceByPriority[p]); err != nil {
		return errors.Wrapf(err, "setpriority(tid=%d, %s)", tid, p)
	}
	return nil
}

func platformThreadPriority(tid int) (int, error) {
	// The raw syscall returns 20-nice to stay non-negative.
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return 0, err
	}
	return 20 - prio, nil
}
