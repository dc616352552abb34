// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for the buffer and worker pools.

package benchmarks

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-pool/core/concurrency"
	"github.com/momentics/hioload-pool/pool"
)

// BenchmarkBufferPoolAllocateFree measures the uncontended allocate/free path.
func BenchmarkBufferPoolAllocateFree(b *testing.B) {
	bp, err := pool.New(64, 4096, pool.WithLogger(zerolog.Nop()))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf := bp.AllocateBuffer()
		if err := bp.FreeBuffer(buf); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkBufferPoolParallel measures contention on the single pool lock.
func BenchmarkBufferPoolParallel(b *testing.B) {
	bp, err := pool.New(64, 4096, pool.WithLogger(zerolog.Nop()))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := bp.AllocateBuffer()
			buf[0] = 1
			_ = bp.FreeBuffer(buf)
		}
	})
	b.ReportMetric(float64(bp.TotalBufferCount()), "buffers")
}

// BenchmarkThreadPoolThroughput measures enqueue-to-completion of no-op items.
func BenchmarkThreadPoolThroughput(b *testing.B) {
	for _, workers := range []int{1, 4} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			tp := concurrency.NewThreadPool("bench", workers, workers, concurrency.WithLogger(zerolog.Nop()))
			defer tp.Shutdown(time.Second)

			var wg sync.WaitGroup
			item := func(any) error {
				wg.Done()
				return nil
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				wg.Add(1)
				if err := tp.QueueWorkItem(item, nil); err != nil {
					b.Fatal(err)
				}
			}
			wg.Wait()
		})
	}
}
