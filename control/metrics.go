// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus export of buffer and worker pool counters.

package control

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/momentics/hioload-pool/api"
)

// BufferPoolSource is anything that reports buffer pool stats.
type BufferPoolSource interface {
	Stats() api.BufferPoolStats
}

// ThreadPoolSource is anything that reports worker pool stats.
type ThreadPoolSource interface {
	Stats() api.ThreadPoolStats
}

// PoolCollector reads pool stats at scrape time.
type PoolCollector struct {
	mu      sync.RWMutex
	buffers []BufferPoolSource
	threads []ThreadPoolSource

	bufTotalDesc      *prometheus.Desc
	bufFreeDesc       *prometheus.Desc
	bufInUseDesc      *prometheus.Desc
	bufBytesDesc      *prometheus.Desc
	bufExpansionsDesc *prometheus.Desc

	thrThreadsDesc   *prometheus.Desc
	thrIdleDesc      *prometheus.Desc
	thrMinDesc       *prometheus.Desc
	thrMaxDesc       *prometheus.Desc
	thrQueuedDesc    *prometheus.Desc
	thrCompletedDesc *prometheus.Desc
	thrFailedDesc    *prometheus.Desc
	thrDroppedDesc   *prometheus.Desc
	thrReplacedDesc  *prometheus.Desc
	thrShutdownDesc  *prometheus.Desc
}

func NewPoolCollector() *PoolCollector {
	pl := []string{"pool"}
	return &PoolCollector{
		bufTotalDesc:      prometheus.NewDesc("hioload_buffer_pool_buffers", "Number of buffers ever created by the pool", pl, nil),
		bufFreeDesc:       prometheus.NewDesc("hioload_buffer_pool_buffers_free", "Number of buffers currently free", pl, nil),
		bufInUseDesc:      prometheus.NewDesc("hioload_buffer_pool_buffers_in_use", "Number of buffers currently borrowed", pl, nil),
		bufBytesDesc:      prometheus.NewDesc("hioload_buffer_pool_bytes", "Memory held by the pool (buffers * buffer size)", pl, nil),
		bufExpansionsDesc: prometheus.NewDesc("hioload_buffer_pool_expansions_total", "Number of times the pool grew after construction", pl, nil),

		thrThreadsDesc:   prometheus.NewDesc("hioload_thread_pool_threads", "Workers currently in the roster", pl, nil),
		thrIdleDesc:      prometheus.NewDesc("hioload_thread_pool_threads_idle", "Workers not executing an item", pl, nil),
		thrMinDesc:       prometheus.NewDesc("hioload_thread_pool_min_threads", "Configured roster floor", pl, nil),
		thrMaxDesc:       prometheus.NewDesc("hioload_thread_pool_max_threads", "Configured roster cap", pl, nil),
		thrQueuedDesc:    prometheus.NewDesc("hioload_thread_pool_queued_items", "Items waiting in the request queue", pl, nil),
		thrCompletedDesc: prometheus.NewDesc("hioload_thread_pool_items_completed_total", "Items executed, including failed ones", pl, nil),
		thrFailedDesc:    prometheus.NewDesc("hioload_thread_pool_items_failed_total", "Items that panicked or returned an error", pl, nil),
		thrDroppedDesc:   prometheus.NewDesc("hioload_thread_pool_items_dropped_total", "Items discarded by shutdown", pl, nil),
		thrReplacedDesc:  prometheus.NewDesc("hioload_thread_pool_workers_replaced_total", "Workers replaced after a dispatch loop fault", pl, nil),
		thrShutdownDesc:  prometheus.NewDesc("hioload_thread_pool_shutting_down", "1 once shutdown has started", pl, nil),
	}
}

// AddBufferPool adds a buffer pool to the scrape set.
func (c *PoolCollector) AddBufferPool(src BufferPoolSource) {
	c.mu.Lock()
	c.buffers = append(c.buffers, src)
	c.mu.Unlock()
}

// AddThreadPool adds a worker pool to the scrape set.
func (c *PoolCollector) AddThreadPool(src ThreadPoolSource) {
	c.mu.Lock()
	c.threads = append(c.threads, src)
	c.mu.Unlock()
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bufTotalDesc
	ch <- c.bufFreeDesc
	ch <- c.bufInUseDesc
	ch <- c.bufBytesDesc
	ch <- c.bufExpansionsDesc
	ch <- c.thrThreadsDesc
	ch <- c.thrIdleDesc
	ch <- c.thrMinDesc
	ch <- c.thrMaxDesc
	ch <- c.thrQueuedDesc
	ch <- c.thrCompletedDesc
	ch <- c.thrFailedDesc
	ch <- c.thrDroppedDesc
	ch <- c.thrReplacedDesc
	ch <- c.thrShutdownDesc
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	buffers := append([]BufferPoolSource(nil), c.buffers...)
	threads := append([]ThreadPoolSource(nil), c.threads...)
	c.mu.RUnlock()

	for _, src := range buffers {
		s := src.Stats()
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, s.Name)
		}
		gauge(c.bufTotalDesc, float64(s.TotalBuffers))
		gauge(c.bufFreeDesc, float64(s.FreeBuffers))
		gauge(c.bufInUseDesc, float64(s.InUse))
		gauge(c.bufBytesDesc, float64(s.TotalBuffers)*float64(s.BufferSize))
		ch <- prometheus.MustNewConstMetric(c.bufExpansionsDesc, prometheus.CounterValue, float64(s.Expansions), s.Name)
	}

	for _, src := range threads {
		s := src.Stats()
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, s.Name)
		}
		counter := func(d *prometheus.Desc, v int64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), s.Name)
		}
		gauge(c.thrThreadsDesc, float64(s.Threads))
		gauge(c.thrIdleDesc, float64(s.Idle))
		gauge(c.thrMinDesc, float64(s.MinThreads))
		gauge(c.thrMaxDesc, float64(s.MaxThreads))
		gauge(c.thrQueuedDesc, float64(s.Queued))
		counter(c.thrCompletedDesc, s.Completed)
		counter(c.thrFailedDesc, s.Failed)
		counter(c.thrDroppedDesc, s.Dropped)
		counter(c.thrReplacedDesc, s.Replaced)
		shutting := 0.0
		if s.ShuttingDown {
			shutting = 1
		}
		gauge(c.thrShutdownDesc, shutting)
	}
}

// MetricsManager owns a private registry with the pool collector and the Go
// runtime collector.
type MetricsManager struct {
	registry  *prometheus.Registry
	collector *PoolCollector
}

func NewMetricsManager() *MetricsManager {
	registry := prometheus.NewRegistry()
	collector := NewPoolCollector()
	registry.MustRegister(collector)
	registry.MustRegister(collectors.NewGoCollector())

	log.Debug().Msg("metrics manager initialized with pool collector")

	return &MetricsManager{
		registry:  registry,
		collector: collector,
	}
}

func (m *MetricsManager) Collector() *PoolCollector { return m.collector }

func (m *MetricsManager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *MetricsManager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
