// Package pool provides type-safe object pooling for the hot encode path.
// Pooled wire writers are reused across packets to keep per-query allocation
// flat regardless of block count.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/chnative/pkg/wire"
)

// Pool wraps sync.Pool with type safety, an optional reset hook, and
// hit/miss statistics. Safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
	}
}

// New creates a pool. newFn is called when the pool is empty; reset, if
// non-nil, runs on every Put before the object is recycled.
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating if empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.hits, 1)
	return p.pool.Get().(T)
}

// Put returns an object for reuse after running the reset hook.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats reports total allocations, objects currently checked out, and Gets
// served since process start.
func (p *Pool[T]) Stats() (allocated, inUse, hits int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits)
}

// Writers holds wire writers sized for typical packet bodies. Callers must
// not retain the writer's Bytes() after Put.
var Writers = New(
	func() *wire.Writer { return wire.NewWriter(4096) },
	func(w *wire.Writer) { w.Reset() },
)

// GetWriter checks a reset wire writer out of the shared pool.
func GetWriter() *wire.Writer { return Writers.Get() }

// PutWriter returns a writer to the shared pool.
func PutWriter(w *wire.Writer) { Writers.Put(w) }
