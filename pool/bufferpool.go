// File: pool/bufferpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/momentics/hioload-pool/api"
)

// DefaultName is used for pools created without WithName.
const DefaultName = "buffers"

// BufferPool hands out reusable buffers of one fixed size. It is safe for
// concurrent use.
type BufferPool struct {
	name       string
	bufferSize int
	log        zerolog.Logger

	mu         sync.Mutex
	free       [][]byte // LIFO for cache locality
	total      int64
	expansions int64

	obsMu     sync.RWMutex
	observers []func(api.PoolExpandedEvent)
}

// Option customizes a BufferPool.
type Option func(*BufferPool)

// WithName sets the pool name used in logs, events and metrics.
func WithName(name string) Option {
	return func(p *BufferPool) {
		if name != "" {
			p.name = name
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *BufferPool) {
		p.log = l
	}
}

// New creates a pool holding initialBuffers buffers of bufferSize bytes.
func New(initialBuffers, bufferSize int, opts ...Option) (*BufferPool, error) {
	if bufferSize <= 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "buffer size %d", bufferSize)
	}
	if initialBuffers < 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "initial buffers %d", initialBuffers)
	}

	p := &BufferPool{
		name:       DefaultName,
		bufferSize: bufferSize,
		log:        log.Logger,
		free:       make([][]byte, 0, initialBuffers),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "bufferpool").Str("pool", p.name).Logger()

	for i := 0; i < initialBuffers; i++ {
		p.free = append(p.free, make([]byte, bufferSize))
	}
	p.total = int64(initialBuffers)
	return p, nil
}

// OnExpanded registers fn to be called after every growth of the pool.
// Observers run on the allocating goroutine, outside the pool lock, so they
// may call back into the pool.
func (p *BufferPool) OnExpanded(fn func(api.PoolExpandedEvent)) {
	if fn == nil {
		return
	}
	p.obsMu.Lock()
	p.observers = append(p.observers, fn)
	p.obsMu.Unlock()
}

// AllocateBuffer returns a free buffer of BufferSize bytes. When none is
// free a new one is created; it never waits for another caller to free one.
// The contents of a reused buffer are whatever its previous borrower left.
func (p *BufferPool) AllocateBuffer() []byte {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return buf
	}
	p.total++
	p.expansions++
	total := p.total
	p.mu.Unlock()

	// Allocated outside the lock; only the counter needs serializing.
	buf := make([]byte, p.bufferSize)
	p.log.Debug().
		Int64("total", total).
		Int("buffer_size", p.bufferSize).
		Int64("footprint", total*int64(p.bufferSize)).
		Msg("buffer pool expanded")
	p.notifyExpanded(api.PoolExpandedEvent{Pool: p.name, TotalBuffers: total, BufferSize: p.bufferSize})
	return buf
}

// FreeBuffer returns buf to the pool. The caller must not use buf afterwards
// and buf must come from this pool; only its capacity is checked.
func (p *BufferPool) FreeBuffer(buf []byte) error {
	if buf == nil {
		return errors.Wrap(api.ErrInvalidArgument, "free nil buffer")
	}
	if cap(buf) != p.bufferSize {
		return errors.Wrapf(api.ErrInvalidArgument, "buffer capacity %d does not match pool buffer size %d", cap(buf), p.bufferSize)
	}
	buf = buf[:p.bufferSize]

	p.mu.Lock()
	p.free = append(p.free, buf)
	p.mu.Unlock()
	return nil
}

// BufferSize is the fixed length of every buffer.
func (p *BufferPool) BufferSize() int { return p.bufferSize }

// Name returns the pool name.
func (p *BufferPool) Name() string { return p.name }

// TotalBufferCount is the number of buffers ever created by the pool.
func (p *BufferPool) TotalBufferCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// FreeCount is the number of buffers currently available.
func (p *BufferPool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats returns a consistent snapshot of the pool counters.
func (p *BufferPool) Stats() api.BufferPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	free := int64(len(p.free))
	return api.BufferPoolStats{
		Name:         p.name,
		TotalBuffers: p.total,
		FreeBuffers:  free,
		InUse:        p.total - free,
		BufferSize:   p.bufferSize,
		Expansions:   p.expansions,
	}
}

func (p *BufferPool) notifyExpanded(ev api.PoolExpandedEvent) {
	p.obsMu.RLock()
	observers := make([]func(api.PoolExpandedEvent), len(p.observers))
	copy(observers, p.observers)
	p.obsMu.RUnlock()

	for _, fn := range observers {
		p.invokeObserver(fn, ev)
	}
}

func (p *BufferPool) invokeObserver(fn func(api.PoolExpandedEvent), ev api.PoolExpandedEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("pool expanded observer panicked")
		}
	}()
	fn(ev)
}

var _ api.BufferPool = (*BufferPool)(nil)
