package adapters_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pool/adapters"
	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/core/concurrency"
)

func TestExecutorAdapterSubmitAndResize(t *testing.T) {
	tp := concurrency.NewThreadPool("exec", 4, 2, concurrency.WithPollInterval(10*time.Millisecond))
	ex := adapters.NewExecutorAdapter(tp)
	t.Cleanup(func() { _ = ex.Close() })

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, ex.Submit(func() { ran.Add(1) }))
	}
	require.Eventually(t, func() bool { return ran.Load() == 20 }, 5*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, ex.NumWorkers(), 2)
	assert.LessOrEqual(t, ex.NumWorkers(), 4)

	ex.Resize(1)
	assert.Equal(t, 1, tp.MaxThreads())
	require.Eventually(t, func() bool { return ex.NumWorkers() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestExecutorAdapterRejectsNilAndClosed(t *testing.T) {
	tp := concurrency.NewThreadPool("exec", 1, 1)
	ex := adapters.NewExecutorAdapter(tp)

	assert.ErrorIs(t, ex.Submit(nil), api.ErrInvalidArgument)
	require.NoError(t, ex.Close())
	assert.ErrorIs(t, ex.Submit(func() {}), api.ErrPoolShutdown)
}
