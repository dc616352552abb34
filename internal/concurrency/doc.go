// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency holds the platform plumbing behind the worker pool:
// the locked FIFO request queue with its broadcast wake signal, and OS thread
// identification and priority control for Linux and Windows.
package concurrency
