package pool_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-pool/api"
	"github.com/momentics/hioload-pool/pool"
)

func TestNewPreallocates(t *testing.T) {
	bp, err := pool.New(4, 512)
	require.NoError(t, err)

	assert.Equal(t, int64(4), bp.TotalBufferCount())
	assert.Equal(t, 4, bp.FreeCount())
	assert.Equal(t, 512, bp.BufferSize())
	assert.Equal(t, pool.DefaultName, bp.Name())
}

func TestNewRejectsBadSizing(t *testing.T) {
	tests := []struct {
		name    string
		initial int
		size    int
	}{
		{"zero_size", 1, 0},
		{"negative_size", 1, -8},
		{"negative_initial", -1, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pool.New(tt.initial, tt.size)
			assert.True(t, errors.Is(err, api.ErrInvalidArgument))
		})
	}
}

func TestBufferReuse(t *testing.T) {
	bp, err := pool.New(1, 128)
	require.NoError(t, err)

	b1 := bp.AllocateBuffer()
	require.Len(t, b1, 128)
	require.NoError(t, bp.FreeBuffer(b1))

	b2 := bp.AllocateBuffer()
	assert.True(t, unsafe.SliceData(b1) == unsafe.SliceData(b2), "freed buffer should be reissued")
	assert.Equal(t, int64(1), bp.TotalBufferCount())
}

func TestTotalCountTracksEmptyAllocations(t *testing.T) {
	bp, err := pool.New(2, 16)
	require.NoError(t, err)

	// Script of allocate (true) / free (false); expected growths are the
	// allocations made while nothing is free.
	script := []bool{true, true, true, false, true, true, false, false, true, true, true}
	var held [][]byte
	growths := 0
	for _, alloc := range script {
		if alloc {
			if bp.FreeCount() == 0 {
				growths++
			}
			held = append(held, bp.AllocateBuffer())
			continue
		}
		last := held[len(held)-1]
		held = held[:len(held)-1]
		require.NoError(t, bp.FreeBuffer(last))
	}

	assert.Equal(t, int64(2+growths), bp.TotalBufferCount())
	stats := bp.Stats()
	assert.Equal(t, int64(len(held)), stats.InUse)
	assert.Equal(t, int64(growths), stats.Expansions)
}

func TestFreeBufferValidation(t *testing.T) {
	bp, err := pool.New(0, 64)
	require.NoError(t, err)

	assert.ErrorIs(t, bp.FreeBuffer(nil), api.ErrInvalidArgument)
	assert.ErrorIs(t, bp.FreeBuffer(make([]byte, 32)), api.ErrInvalidArgument)
	assert.Equal(t, 0, bp.FreeCount())

	// A resliced buffer is accepted and restored to full length.
	buf := bp.AllocateBuffer()
	require.NoError(t, bp.FreeBuffer(buf[:10]))
	assert.Len(t, bp.AllocateBuffer(), 64)
}

func TestExpandedNotificationOncePerGrowth(t *testing.T) {
	bp, err := pool.New(1, 256, pool.WithName("io"))
	require.NoError(t, err)

	var events []api.PoolExpandedEvent
	bp.OnExpanded(func(ev api.PoolExpandedEvent) {
		events = append(events, ev)
	})

	bp.AllocateBuffer() // from the free list, no event
	require.Empty(t, events)

	bp.AllocateBuffer()
	require.Len(t, events, 1)
	assert.Equal(t, api.PoolExpandedEvent{Pool: "io", TotalBuffers: 2, BufferSize: 256}, events[0])

	bp.AllocateBuffer()
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[1].TotalBuffers)
}

func TestObserverMayReenterPool(t *testing.T) {
	bp, err := pool.New(0, 8)
	require.NoError(t, err)

	var seen int64
	bp.OnExpanded(func(api.PoolExpandedEvent) {
		seen = bp.TotalBufferCount()
	})
	bp.AllocateBuffer()
	assert.Equal(t, int64(1), seen)
}

func TestPanickingObserverDoesNotBreakAllocation(t *testing.T) {
	bp, err := pool.New(0, 8)
	require.NoError(t, err)

	calls := 0
	bp.OnExpanded(func(api.PoolExpandedEvent) { panic("observer bug") })
	bp.OnExpanded(func(api.PoolExpandedEvent) { calls++ })

	buf := bp.AllocateBuffer()
	assert.Len(t, buf, 8)
	assert.Equal(t, 1, calls)
}

func TestConcurrentAllocateNeverDoubleIssues(t *testing.T) {
	const (
		goroutines = 16
		rounds     = 500
	)
	bp, err := pool.New(4, 32)
	require.NoError(t, err)

	var notifications atomic.Int64
	bp.OnExpanded(func(api.PoolExpandedEvent) { notifications.Add(1) })

	var (
		mu          sync.Mutex
		outstanding = make(map[*byte]bool)
		doubles     atomic.Int64
		wg          sync.WaitGroup
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				buf := bp.AllocateBuffer()
				key := unsafe.SliceData(buf)

				mu.Lock()
				if outstanding[key] {
					doubles.Add(1)
				}
				outstanding[key] = true
				mu.Unlock()

				buf[0] = byte(i)

				mu.Lock()
				delete(outstanding, key)
				mu.Unlock()
				if err := bp.FreeBuffer(buf); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, doubles.Load())
	stats := bp.Stats()
	assert.Zero(t, stats.InUse)
	assert.LessOrEqual(t, stats.TotalBuffers, int64(4+goroutines))
	assert.Equal(t, stats.TotalBuffers-4, notifications.Load())
}
