// File: core/concurrency/threadpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ThreadPool runs WorkItems from a FIFO request queue on a self-healing roster
// of workers. The request queue and the roster have separate locks; the
// roster lock may be taken before the queue lock, never the other way round.

package concurrency

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/momentics/hioload-pool/api"
	platform "github.com/momentics/hioload-pool/internal/concurrency"
)

// setThreadPriority is replaced in tests that need priority changes to fail.
var setThreadPriority = platform.SetThreadPriority

const (
	DefaultNamePrefix    = "hioload worker"
	DefaultPollInterval  = time.Second
	DefaultIdleTimeout   = 30 * time.Second
	DefaultShutdownGrace = 5 * time.Second
)

// WorkItem is a queued callback with its state. It is immutable once queued.
type WorkItem struct {
	Callback   api.WaitCallback
	State      any
	EnqueuedAt time.Time
}

// ThreadPool is a private worker pool. The zero value is not usable; create
// one with NewThreadPool.
type ThreadPool struct {
	name          string
	log           zerolog.Logger
	pollInterval  time.Duration
	idleTimeout   time.Duration
	shutdownGrace time.Duration

	queue *platform.RequestQueue[WorkItem]

	rosterMu   sync.Mutex
	roster     []*worker
	minThreads int
	maxThreads int
	priority   api.ThreadPriority
	drained    chan struct{}
	drainedSet bool

	shuttingDown atomic.Bool
	busy         atomic.Int32
	completed    atomic.Int64
	failed       atomic.Int64
	dropped      atomic.Int64
	replaced     atomic.Int64

	lisMu       sync.RWMutex
	onException []func(api.TaskExceptionEvent)
	onShutdown  []func(api.ShuttingDownEvent)
}

// NewThreadPool creates a pool whose workers are named "{namePrefix} {n}".
// No worker is started until the first item is queued.
func NewThreadPool(namePrefix string, maxThreads, minThreads int, opts ...Option) *ThreadPool {
	if namePrefix == "" {
		namePrefix = DefaultNamePrefix
	}
	if minThreads < 0 {
		minThreads = 0
	}
	if maxThreads < 1 {
		maxThreads = 1
	}
	if maxThreads < minThreads {
		maxThreads = minThreads
	}

	tp := &ThreadPool{
		name:          namePrefix,
		log:           log.Logger,
		pollInterval:  DefaultPollInterval,
		idleTimeout:   DefaultIdleTimeout,
		shutdownGrace: DefaultShutdownGrace,
		queue:         platform.NewRequestQueue[WorkItem](),
		minThreads:    minThreads,
		maxThreads:    maxThreads,
		priority:      api.PriorityNormal,
		drained:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(tp)
	}
	tp.log = tp.log.With().Str("component", "threadpool").Str("pool", tp.name).Logger()
	return tp
}

// Name returns the worker name prefix.
func (tp *ThreadPool) Name() string { return tp.name }

// OnTaskException registers fn to receive failures of individual work items.
// Listeners run on the worker that executed the item.
func (tp *ThreadPool) OnTaskException(fn func(api.TaskExceptionEvent)) {
	if fn == nil {
		return
	}
	tp.lisMu.Lock()
	tp.onException = append(tp.onException, fn)
	tp.lisMu.Unlock()
}

// OnShuttingDown registers fn to be called once when Shutdown starts.
func (tp *ThreadPool) OnShuttingDown(fn func(api.ShuttingDownEvent)) {
	if fn == nil {
		return
	}
	tp.lisMu.Lock()
	tp.onShutdown = append(tp.onShutdown, fn)
	tp.lisMu.Unlock()
}

// QueueWorkItem appends cb to the request queue and makes sure enough workers
// are running. After Shutdown the item is dropped and ErrPoolShutdown is
// returned; callers may ignore that error.
func (tp *ThreadPool) QueueWorkItem(cb api.WaitCallback, state any) error {
	if cb == nil {
		return errors.Wrap(api.ErrInvalidArgument, "nil work item callback")
	}
	if tp.shuttingDown.Load() {
		tp.dropped.Add(1)
		return api.ErrPoolShutdown
	}

	tp.queue.Enqueue(WorkItem{Callback: cb, State: state, EnqueuedAt: time.Now()})

	// Shutdown may have cleared the queue between the check and the enqueue.
	if tp.shuttingDown.Load() {
		tp.dropped.Add(int64(tp.queue.Clear()))
		return api.ErrPoolShutdown
	}
	tp.EnsureRunning()
	return nil
}

// EnsureRunning grows the roster to MinThreads, plus one worker per queued
// item that no idle worker can take, never beyond MaxThreads.
func (tp *ThreadPool) EnsureRunning() {
	if tp.shuttingDown.Load() {
		return
	}
	pending := tp.queue.Len()
	tp.rosterMu.Lock()
	tp.ensureRunningLocked(pending)
	tp.rosterMu.Unlock()
}

func (tp *ThreadPool) ensureRunningLocked(pending int) {
	if tp.shuttingDown.Load() {
		return
	}
	for len(tp.roster) < tp.minThreads {
		tp.spawnLocked()
	}
	available := len(tp.roster) - int(tp.busy.Load())
	for backlog := pending - available; backlog > 0 && len(tp.roster) < tp.maxThreads; backlog-- {
		tp.spawnLocked()
	}
}

func (tp *ThreadPool) spawnLocked() {
	w := newWorker(tp, tp.nextNameLocked())
	tp.roster = append(tp.roster, w)
	tp.log.Debug().Str("worker", w.name).Int("threads", len(tp.roster)).Msg("starting worker")
	go w.run()
}

// nextNameLocked picks "{prefix} {n}" with n starting at len(roster)+1 and
// skipping names still held by live workers.
func (tp *ThreadPool) nextNameLocked() string {
	for n := len(tp.roster) + 1; ; n++ {
		candidate := fmt.Sprintf("%s %d", tp.name, n)
		if !tp.nameTakenLocked(candidate) {
			return candidate
		}
	}
}

func (tp *ThreadPool) nameTakenLocked(name string) bool {
	for _, w := range tp.roster {
		if w.name == name {
			return true
		}
	}
	return false
}

func (tp *ThreadPool) removeLocked(w *worker) bool {
	for i, cur := range tp.roster {
		if cur == w {
			tp.roster = append(tp.roster[:i], tp.roster[i+1:]...)
			return true
		}
	}
	return false
}

func (tp *ThreadPool) signalDrainedLocked() {
	if tp.drainedSet || !tp.shuttingDown.Load() || len(tp.roster) > 0 {
		return
	}
	tp.drainedSet = true
	close(tp.drained)
}

// attach records the worker's OS thread and applies the pool priority to it.
// Priority is applied under the roster lock so a concurrent
// SetThreadPriority cannot be overwritten with a stale value.
func (tp *ThreadPool) attach(w *worker, tid int) {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	w.tid = tid
	if tp.priority != api.PriorityNormal {
		_ = tp.applyPriorityLocked(w, tp.priority)
	}
}

// retireIdle removes w when the roster is above MaxThreads, or above
// MinThreads and w has been idle for at least IdleTimeout.
func (tp *ThreadPool) retireIdle(w *worker, idleFor time.Duration) bool {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	n := len(tp.roster)
	if n > tp.maxThreads || (n > tp.minThreads && idleFor >= tp.idleTimeout) {
		if tp.removeLocked(w) {
			tp.log.Debug().Str("worker", w.name).Dur("idle", idleFor).Int("threads", n-1).Msg("retiring idle worker")
			return true
		}
	}
	return false
}

// retire is called by every exiting worker. A faulted worker is replaced
// unless the pool is shutting down.
func (tp *ThreadPool) retire(w *worker, fault error) {
	if fault != nil {
		tp.log.Error().Err(fault).Str("worker", w.name).Msg("worker dispatch loop failed")
	}

	pending := tp.queue.Len()
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	tp.removeLocked(w)
	if tp.shuttingDown.Load() {
		tp.signalDrainedLocked()
		return
	}
	if fault != nil {
		tp.replaced.Add(1)
	}
	tp.ensureRunningLocked(pending)
}

// Shutdown latches the pool closed, drops all queued items and waits up to
// grace for the workers to exit. Only the first call does anything; later
// calls return nil. If workers are still running when grace expires they
// are detached from the roster and ErrShutdownTimeout is returned.
func (tp *ThreadPool) Shutdown(grace time.Duration) error {
	if !tp.shuttingDown.CompareAndSwap(false, true) {
		return nil
	}

	dropped := tp.queue.Clear()
	tp.dropped.Add(int64(dropped))
	tp.log.Info().Int("dropped", dropped).Dur("grace", grace).Msg("thread pool shutting down")
	tp.fireShuttingDown(api.ShuttingDownEvent{Pool: tp.name, Dropped: dropped})
	tp.queue.Wake()

	tp.rosterMu.Lock()
	tp.signalDrainedLocked()
	tp.rosterMu.Unlock()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-tp.drained:
		tp.log.Debug().Msg("thread pool drained")
		return nil
	case <-timer.C:
	}

	tp.rosterMu.Lock()
	stuck := make([]string, 0, len(tp.roster))
	for _, w := range tp.roster {
		w.detached.Store(true)
		stuck = append(stuck, w.name)
	}
	tp.roster = nil
	tp.signalDrainedLocked()
	tp.rosterMu.Unlock()

	if len(stuck) == 0 {
		return nil
	}
	tp.log.Warn().Strs("workers", stuck).Dur("grace", grace).Msg("degraded shutdown: workers still running after grace period were detached")
	return errors.Wrapf(api.ErrShutdownTimeout, "%d worker(s) still running after %s", len(stuck), grace)
}

// Close shuts the pool down with the configured grace period.
func (tp *ThreadPool) Close() error {
	return tp.Shutdown(tp.shutdownGrace)
}

// IsShuttingDown reports whether Shutdown has been called.
func (tp *ThreadPool) IsShuttingDown() bool {
	return tp.shuttingDown.Load()
}

// ThreadPriority returns the priority applied to worker threads.
func (tp *ThreadPool) ThreadPriority() api.ThreadPriority {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	return tp.priority
}

// SetThreadPriority changes the priority of every current and future worker.
//
// Lowering the nice value of a thread needs privilege on Linux, so a worker
// that cannot be moved back towards normal priority is replaced: the old
// thread finishes its current item and is discarded, and the new one starts
// at the base priority. Workers that cannot be raised above normal are left
// as they are and the failure is returned. The new level is recorded either
// way and applies to workers started later.
func (tp *ThreadPool) SetThreadPriority(p api.ThreadPriority) error {
	if !p.Valid() {
		return errors.Wrapf(api.ErrInvalidArgument, "thread priority %d", int(p))
	}
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	tp.priority = p

	var (
		firstErr error
		failed   int
		replaced int
	)
	live := make([]*worker, len(tp.roster))
	copy(live, tp.roster)
	for _, w := range live {
		err := tp.applyPriorityLocked(w, p)
		if err == nil {
			continue
		}
		if p <= api.PriorityNormal && !tp.shuttingDown.Load() {
			tp.replaceLocked(w)
			replaced++
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		failed++
	}
	if replaced > 0 {
		// Detached workers waiting on the queue exit once woken.
		tp.queue.Wake()
	}
	if failed > 0 {
		return errors.Wrapf(firstErr, "thread priority %s not applied to %d worker(s)", p, failed)
	}
	return nil
}

func (tp *ThreadPool) applyPriorityLocked(w *worker, p api.ThreadPriority) error {
	if w.tid == 0 {
		// Not started yet; attach applies the pool priority.
		return nil
	}
	if err := setThreadPriority(w.tid, p); err != nil {
		if errors.Is(err, api.ErrNotSupported) {
			return nil
		}
		tp.log.Debug().Err(err).Str("worker", w.name).Stringer("priority", p).Msg("cannot set worker thread priority")
		return err
	}
	return nil
}

// replaceLocked detaches w from the roster and starts a fresh worker in its
// place.
func (tp *ThreadPool) replaceLocked(w *worker) {
	if !tp.removeLocked(w) {
		return
	}
	w.detached.Store(true)
	tp.replaced.Add(1)
	tp.log.Debug().Str("worker", w.name).Msg("replacing worker thread")
	tp.spawnLocked()
}

// MinThreads returns the roster floor.
func (tp *ThreadPool) MinThreads() int {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	return tp.minThreads
}

// SetMinThreads changes the roster floor, raising MaxThreads if needed, and
// starts workers to meet it.
func (tp *ThreadPool) SetMinThreads(n int) {
	if n < 0 {
		n = 0
	}
	pending := tp.queue.Len()
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	tp.minThreads = n
	if tp.maxThreads < n {
		tp.maxThreads = n
	}
	tp.ensureRunningLocked(pending)
}

// MaxThreads returns the roster cap.
func (tp *ThreadPool) MaxThreads() int {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	return tp.maxThreads
}

// SetMaxThreads changes the roster cap, lowering MinThreads if needed.
// Workers above the new cap retire at their next idle poll.
func (tp *ThreadPool) SetMaxThreads(n int) {
	if n < 1 {
		n = 1
	}
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	tp.maxThreads = n
	if tp.minThreads > n {
		tp.minThreads = n
	}
}

// Threads returns the names of the workers currently in the roster.
func (tp *ThreadPool) Threads() []string {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	names := make([]string, len(tp.roster))
	for i, w := range tp.roster {
		names[i] = w.name
	}
	return names
}

// Workers returns a snapshot of every worker in the roster.
func (tp *ThreadPool) Workers() []WorkerInfo {
	tp.rosterMu.Lock()
	defer tp.rosterMu.Unlock()
	out := make([]WorkerInfo, len(tp.roster))
	for i, w := range tp.roster {
		out[i] = w.info()
	}
	return out
}

// Stats returns pool counters.
func (tp *ThreadPool) Stats() api.ThreadPoolStats {
	tp.rosterMu.Lock()
	threads := len(tp.roster)
	minT, maxT := tp.minThreads, tp.maxThreads
	tp.rosterMu.Unlock()

	idle := threads - int(tp.busy.Load())
	if idle < 0 {
		idle = 0
	}
	return api.ThreadPoolStats{
		Name:         tp.name,
		Threads:      threads,
		Idle:         idle,
		MinThreads:   minT,
		MaxThreads:   maxT,
		Queued:       tp.queue.Len(),
		Completed:    tp.completed.Load(),
		Failed:       tp.failed.Load(),
		Dropped:      tp.dropped.Load(),
		Replaced:     tp.replaced.Load(),
		ShuttingDown: tp.shuttingDown.Load(),
	}
}

func (tp *ThreadPool) fireTaskException(ev api.TaskExceptionEvent) {
	tp.lisMu.RLock()
	listeners := make([]func(api.TaskExceptionEvent), len(tp.onException))
	copy(listeners, tp.onException)
	tp.lisMu.RUnlock()

	if len(listeners) == 0 {
		tp.log.Warn().Err(ev.Err).Str("worker", ev.Worker).Msg("work item failed")
		return
	}
	for _, fn := range listeners {
		tp.safeCall("task exception", func() { fn(ev) })
	}
}

func (tp *ThreadPool) fireShuttingDown(ev api.ShuttingDownEvent) {
	tp.lisMu.RLock()
	listeners := make([]func(api.ShuttingDownEvent), len(tp.onShutdown))
	copy(listeners, tp.onShutdown)
	tp.lisMu.RUnlock()

	for _, fn := range listeners {
		tp.safeCall("shutting down", func() { fn(ev) })
	}
}

func (tp *ThreadPool) safeCall(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			tp.log.Error().Interface("panic", r).Str("listener", kind).Msg("listener panicked")
		}
	}()
	fn()
}

var (
	_ api.WorkQueue        = (*ThreadPool)(nil)
	_ api.GracefulShutdown = (*ThreadPool)(nil)
)
