package adapters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pool/adapters"
	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/control"
)

func TestControlAdapterBasic(t *testing.T) {
	loader, err := control.NewLoader("")
	require.NoError(t, err)
	ctrl := adapters.NewControlAdapter(loader, control.NewDebugProbes())

	cfg := ctrl.GetConfig()
	require.Contains(t, cfg, "workerpool")

	called := 0
	ctrl.OnReload(func() { called++ })

	// Both bounds move together; applied one at a time this would fail validation.
	require.NoError(t, ctrl.SetConfig(map[string]any{
		"workerPool.minThreads": 6,
		"workerPool.maxThreads": 8,
	}))
	assert.Equal(t, 1, called)
	assert.Equal(t, 6, loader.Config().WorkerPool.MinThreads)
	assert.Equal(t, 8, loader.Config().WorkerPool.MaxThreads)

	err = ctrl.SetConfig(map[string]any{"bufferPool.bufferSize": -1})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
	assert.Equal(t, 1, called)

	ctrl.RegisterDebugProbe("answer", func() any { return 42 })
	stats := ctrl.Stats()
	assert.Equal(t, 42, stats["answer"])
	assert.Contains(t, stats, "platform.cpus")
}
