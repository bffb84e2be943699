// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "sync"

// ReadBufferSize is the capacity of buffers handed out by the default
// pool, sized to drain a full kernel socket buffer in one read.
const ReadBufferSize = 64 * 1024

// BytePool hands out fixed-capacity byte slices backed by sync.Pool.
type BytePool struct {
	size int
	pool *sync.Pool
}

// NewBytePool creates a pool of buffers with the given capacity.
func NewBytePool(size int) *BytePool {
	return &BytePool{
		size: size,
		pool: &sync.Pool{
			New: func() any { return make([]byte, size) },
		},
	}
}

// Get borrows a buffer of the pool's full capacity.
func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a buffer to the pool. Slices that no longer have the
// pool's capacity (resliced or foreign) are dropped for the GC.
func (p *BytePool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	p.pool.Put(buf[:p.size])
}

// Size returns the capacity of buffers managed by this pool.
func (p *BytePool) Size() int { return p.size }

var (
	defaultOnce sync.Once
	defaultPool *BytePool
)

// Default returns the process-wide read buffer pool so all reactors
// share one set of buffers instead of fragmenting allocations.
func Default() *BytePool {
	defaultOnce.Do(func() {
		defaultPool = NewBytePool(ReadBufferSize)
	})
	return defaultPool
}
