package pool_test

import (
	"testing"

	"github.com/momentics/twine/pool"
)

func TestBytePoolHandsOutFullCapacity(t *testing.T) {
	p := pool.NewBytePool(128)
	buf := p.Get()
	if len(buf) != 128 || cap(buf) != 128 {
		t.Fatalf("expected 128-byte buffer, got len=%d cap=%d", len(buf), cap(buf))
	}
}

func TestBytePoolRestoresLength(t *testing.T) {
	p := pool.NewBytePool(64)
	buf := p.Get()
	p.Put(buf[:3])
	again := p.Get()
	if len(again) != 64 {
		t.Fatalf("recycled buffer should come back full-length, got %d", len(again))
	}
}

func TestBytePoolDropsForeignBuffers(t *testing.T) {
	p := pool.NewBytePool(32)
	// Must not panic or poison the pool.
	p.Put(make([]byte, 8))
	buf := p.Get()
	if cap(buf) != 32 {
		t.Fatalf("pool handed out foreign buffer with cap %d", cap(buf))
	}
}

func TestDefaultPoolIsShared(t *testing.T) {
	if pool.Default() != pool.Default() {
		t.Fatal("Default must return the same pool")
	}
	if pool.Default().Size() != pool.ReadBufferSize {
		t.Fatalf("default pool size = %d, want %d", pool.Default().Size(), pool.ReadBufferSize)
	}
}

// BenchmarkBytePoolGetPut measures pooled buffer churn under parallel
// load.
func BenchmarkBytePoolGetPut(b *testing.B) {
	p := pool.NewBytePool(pool.ReadBufferSize)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := p.Get()
			p.Put(buf)
		}
	})
}
