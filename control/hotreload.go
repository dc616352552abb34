// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Pushes reloaded worker pool settings into a live ThreadPool.

package control

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/momentics/hioload-pool/core/concurrency"
)

// ApplyWorkerPoolConfig updates sizing and priority of a running pool. The
// cap is applied before the floor so the pair never passes through an
// inconsistent state.
func ApplyWorkerPoolConfig(tp *concurrency.ThreadPool, c WorkerPoolConfig) error {
	tp.SetMaxThreads(c.MaxThreads)
	tp.SetMinThreads(c.MinThreads)
	if err := tp.SetThreadPriority(c.ThreadPriority()); err != nil {
		return errors.Wrap(err, "apply worker priority")
	}
	return nil
}

// BindThreadPool keeps tp in sync with every reload of l.
func BindThreadPool(l *Loader, tp *concurrency.ThreadPool) {
	l.OnReload(func(cfg Config) {
		if tp.IsShuttingDown() {
			return
		}
		if err := ApplyWorkerPoolConfig(tp, cfg.WorkerPool); err != nil {
			log.Warn().Err(err).Str("pool", tp.Name()).Msg("hot reload of worker pool failed")
			return
		}
		log.Info().
			Str("pool", tp.Name()).
			Int("min_threads", cfg.WorkerPool.MinThreads).
			Int("max_threads", cfg.WorkerPool.MaxThreads).
			Str("priority", cfg.WorkerPool.Priority).
			Msg("worker pool reconfigured")
	})
}
