// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control interface using control package primitives.

package adapters

import (
	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/control"
)

type ControlAdapter struct {
	config *control.Loader
	debug  *control.DebugProbes
}

// NewControlAdapter exposes loader and probes through api.Control.
func NewControlAdapter(loader *control.Loader, probes *control.DebugProbes) *ControlAdapter {
	return &ControlAdapter{config: loader, debug: probes}
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.AllSettings()
}

// SetConfig applies dotted keys ("workerPool.maxThreads") in one reload.
func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	return c.config.SetAll(cfg)
}

func (c *ControlAdapter) Stats() map[string]any {
	return c.debug.DumpState()
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(func(control.Config) { fn() })
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

var _ api.Control = (*ControlAdapter)(nil)
