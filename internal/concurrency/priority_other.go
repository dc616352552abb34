//go:build !linux && !windows
// +build !linux,!windows

// File: internal/concurrency/priority_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import "github.com/momentics/hioload-pool/api"

func platformCurrentThreadID() int { return 0 }

func platformSetThreadPriority(_ int, _ api.ThreadPriority) error {
	return api.ErrNotSupported
}

func platformThreadPriority(_ int) (int, error) {
	return 0, api.ErrNotSupported
}
