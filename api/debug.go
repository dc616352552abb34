// File: api/debug.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Debug exposes named probes over live pools.
type Debug interface {
	// DumpState evaluates every probe and returns the results keyed by name.
	DumpState() map[string]any

	// RegisterProbe adds or replaces the probe called name.
	RegisterProbe(name string, fn func() any)
}
