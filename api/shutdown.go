// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that can be stopped with
// their configured grace period.
type GracefulShutdown interface {
	// Close stops the component and releases its resources.
	Close() error
}
