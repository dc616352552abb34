// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, metrics and debug introspection for the pools.
//
// Provides:
//   - Config loading through viper (file, HIOPOOL_* environment, defaults)
//   - Reload listeners that push worker pool sizing and priority into live pools
//   - A Prometheus collector for buffer and worker pool counters
//   - Named debug probes for state dumps
//
// Nothing here is process-global: every Loader, collector and probe set is
// created explicitly and handed to the components that need it.
package control
