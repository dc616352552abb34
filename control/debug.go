// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug probes for internal inspection of the pools.

package control

import (
	"sync"

	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/core/concurrency"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry with the platform probes installed.
func NewDebugProbes() *DebugProbes {
	dp := &DebugProbes{
		probes: make(map[string]func() any),
	}
	RegisterPlatformProbes(dp)
	return dp
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	probes := make(map[string]func() any, len(dp.probes))
	for k, fn := range dp.probes {
		probes[k] = fn
	}
	dp.mu.RUnlock()

	out := make(map[string]any, len(probes))
	for k, fn := range probes {
		out[k] = fn()
	}
	return out
}

// RegisterBufferPoolProbe exposes bp's stats under "bufferpool.<name>".
func (dp *DebugProbes) RegisterBufferPoolProbe(bp BufferPoolSource) {
	name := bp.Stats().Name
	dp.RegisterProbe("bufferpool."+name, func() any { return bp.Stats() })
}

// RegisterThreadPoolProbes exposes tp's stats and per-worker states.
func (dp *DebugProbes) RegisterThreadPoolProbes(tp *concurrency.ThreadPool) {
	dp.RegisterProbe("threadpool."+tp.Name(), func() any { return tp.Stats() })
	dp.RegisterProbe("threadpool."+tp.Name()+".workers", func() any {
		ws := tp.Workers()
		out := make([]map[string]any, len(ws))
		for i, w := range ws {
			out[i] = map[string]any{"name": w.Name, "state": w.State.String(), "tid": w.ThreadID}
		}
		return out
	})
	dp.RegisterProbe("threadpool."+tp.Name()+".priority", func() any { return tp.ThreadPriority().String() })
}

var _ api.Debug = (*DebugProbes)(nil)
