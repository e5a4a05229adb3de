// File: pool/bytepool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size scratch buffers recycled through a bounded channel free list.

package pool

import "sync/atomic"

// DefaultBufferSize is the scratch size used for body copies and socket reads.
const DefaultBufferSize = 32 * 1024

// BytePool hands out []byte of one fixed size. It is safe for concurrent use.
type BytePool struct {
	free chan []byte
	size int

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Stats reports free-list effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
	Free   int
}

// NewBytePool creates a pool of size-byte buffers keeping at most capacity idle.
func NewBytePool(size, capacity int) *BytePool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if capacity < 0 {
		capacity = 0
	}
	return &BytePool{
		free: make(chan []byte, capacity),
		size: size,
	}
}

// Size returns the length of buffers returned by Get.
func (p *BytePool) Size() int { return p.size }

// Get returns a buffer from the pool or allocates one.
func (p *BytePool) Get() []byte {
	select {
	case buf := <-p.free:
		p.hits.Add(1)
		return buf[:p.size]
	default:
		p.misses.Add(1)
		return make([]byte, p.size)
	}
}

// Put returns buf to the pool. Buffers of a foreign capacity are dropped, as
// are buffers beyond the idle capacity.
func (p *BytePool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	select {
	case p.free <- buf[:p.size]:
	default:
	}
}

// Stats returns a snapshot of the counters.
func (p *BytePool) Stats() Stats {
	return Stats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
		Free:   len(p.free),
	}
}

var shared = NewBytePool(DefaultBufferSize, 64)

// Shared returns the process-wide pool of DefaultBufferSize buffers.
func Shared() *BytePool { return shared }
