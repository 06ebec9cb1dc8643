// Package buffer defines the reference-counted byte buffer contract the
// transport core consumes from an external allocator library; concrete
// byte-buffer allocators are out of scope for this module.
//
// Pooled provides a small, dependency-free implementation of the contract so
// the rest of the module, and its tests, have something concrete to
// allocate from. It is not meant to compete with a production allocator.
package buffer

import "sync/atomic"

// ByteBuffer is a reference-counted, growable byte buffer.
//
// A buffer starts with a reference count of 1 when returned by an
// Allocator. Retain must be called by any code that keeps a reference
// beyond the call that produced or received it; Release gives one
// reference back, freeing the underlying storage once the count reaches
// zero.
type ByteBuffer interface {
	// ReadableBytes returns the number of bytes available to read.
	ReadableBytes() int

	// Bytes returns the readable portion of the buffer. The slice is only
	// valid until the buffer is released.
	Bytes() []byte

	// Capacity returns the total allocated capacity.
	Capacity() int

	// Retain increments the reference count and returns the buffer.
	Retain() ByteBuffer

	// Release decrements the reference count, freeing the buffer when it
	// reaches zero. Returns true iff this call freed the buffer.
	Release() bool

	// RefCount returns the current reference count, for diagnostics.
	RefCount() int32
}

// Allocator is the external collaborator (§6) that hands out ByteBuffers.
// A production implementation typically pools and/or uses off-heap memory;
// this module only depends on the interface.
type Allocator interface {
	// Buffer returns a heap-backed buffer of the given capacity.
	Buffer(capacity int) ByteBuffer

	// DirectBuffer returns an off-heap-backed buffer of the given capacity,
	// if the allocator supports it. Implementations that don't distinguish
	// may alias Buffer.
	DirectBuffer(capacity int) ByteBuffer
}

// Pooled is a minimal, non-production Allocator: every buffer is a plain
// byte slice with an atomic reference count. Good enough to drive
// ReceiveBufferSizer, OutboundBuffer and the tests that exercise them.
type Pooled struct{}

// NewPooled returns a new Pooled allocator.
func NewPooled() *Pooled { return &Pooled{} }

func (*Pooled) Buffer(capacity int) ByteBuffer       { return newSliceBuffer(capacity) }
func (*Pooled) DirectBuffer(capacity int) ByteBuffer { return newSliceBuffer(capacity) }

// SliceBuffer is the concrete ByteBuffer backing Pooled.
type SliceBuffer struct {
	data []byte
	rc   atomic.Int32
}

func newSliceBuffer(capacity int) *SliceBuffer {
	if capacity < 0 {
		capacity = 0
	}
	b := &SliceBuffer{data: make([]byte, 0, capacity)}
	b.rc.Store(1)
	return b
}

func (b *SliceBuffer) ReadableBytes() int { return len(b.data) }
func (b *SliceBuffer) Bytes() []byte      { return b.data }
func (b *SliceBuffer) Capacity() int      { return cap(b.data) }

func (b *SliceBuffer) Retain() ByteBuffer {
	b.rc.Add(1)
	return b
}

func (b *SliceBuffer) Release() bool {
	if b.rc.Add(-1) == 0 {
		b.data = nil
		return true
	}
	return false
}

func (b *SliceBuffer) RefCount() int32 { return b.rc.Load() }

// WriteFull appends src to the buffer, growing len (not cap) up to Capacity.
// Used by tests and the loopback transport to fill a freshly allocated
// buffer after a read.
func (b *SliceBuffer) WriteFull(src []byte) int {
	room := cap(b.data) - len(b.data)
	if room <= 0 {
		return 0
	}
	if len(src) > room {
		src = src[:room]
	}
	b.data = append(b.data, src...)
	return len(src)
}

// AsSliceBuffer exposes the concrete type so the loopback transport can
// append read bytes without widening the ByteBuffer interface.
func AsSliceBuffer(b ByteBuffer) (*SliceBuffer, bool) {
	sb, ok := b.(*SliceBuffer)
	return sb, ok
}
