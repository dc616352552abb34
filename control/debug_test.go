package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/core/concurrency"
	"github.com/momentics/hioload-pool/pool"
)

func TestDebugProbesDumpPools(t *testing.T) {
	dp := NewDebugProbes()

	bp, err := pool.New(1, 32, pool.WithName("dbg"), pool.WithLogger(testLogger()))
	require.NoError(t, err)
	dp.RegisterBufferPoolProbe(bp)

	tp := concurrency.NewThreadPool("dbg", 1, 1, concurrency.WithLogger(testLogger()))
	defer tp.Shutdown(time.Second)
	require.NoError(t, tp.QueueWorkItem(func(any) error { return nil }, nil))
	require.Eventually(t, func() bool { return len(tp.Workers()) == 1 }, 2*time.Second, 5*time.Millisecond)
	dp.RegisterThreadPoolProbes(tp)

	state := dp.DumpState()
	assert.Contains(t, state, "platform.cpus")
	assert.Equal(t, int64(1), state["bufferpool.dbg"].(api.BufferPoolStats).TotalBuffers)
	assert.Equal(t, "dbg", state["threadpool.dbg"].(api.ThreadPoolStats).Name)
	assert.Equal(t, "normal", state["threadpool.dbg.priority"])

	workers := state["threadpool.dbg.workers"].([]map[string]any)
	require.Len(t, workers, 1)
	assert.Equal(t, "dbg 1", workers[0]["name"])
}
