//go:build windows
// +build windows

// File: internal/concurrency/priority_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows thread priorities map 1:1 onto api.ThreadPriority values
// (THREAD_PRIORITY_LOWEST .. THREAD_PRIORITY_HIGHEST).

package concurrency

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-pool/api"
)

const (
	threadSetInformation   = 0x0020
	threadQueryInformation = 0x0040
)

var (
	modkernel32           = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadPriority = modkernel32.NewProc("SetThreadPriority")
	procGetThreadPriority = modkernel32.NewProc("GetThreadPriority")
)

func platformCurrentThreadID() int {
	return int(windows.GetCurrentThreadId())
}

func platformSetThreadPriority(tid int, p api.ThreadPriority) error {
	h, err := windows.OpenThread(threadSetInformation, false, uint32(tid))
	if err != nil {
		return errors.Wrapf(err, "OpenThread(%d)", tid)
	}
	defer windows.CloseHandle(h)
	ok, _, callErr := procSetThreadPriority.Call(uintptr(h), uintptr(int32(p)))
	if ok == 0 {
		return errors.Wrapf(callErr, "SetThreadPriority(%d, %s)", tid, p)
	}
	return nil
}

func platformThreadPriority(tid int) (int, error) {
	h, err := windows.OpenThread(threadQueryInformation, false, uint32(tid))
	if err != nil {
		return 0, err
	}
	defer windows.CloseHandle(h)
	r, _, _ := procGetThreadPriority.Call(uintptr(h))
	return int(int32(r)), nil
}
