package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPooled_BufferLifecycle(t *testing.T) {
	alloc := NewPooled()
	b := alloc.Buffer(16)
	a := assert.New(t)

	a.Equal(0, b.ReadableBytes())
	a.Equal(16, b.Capacity())
	a.EqualValues(1, b.RefCount())

	sb, ok := AsSliceBuffer(b)
	a.True(ok)
	n := sb.WriteFull([]byte("hello"))
	a.Equal(5, n)
	a.Equal(5, b.ReadableBytes())
	a.Equal([]byte("hello"), b.Bytes())
}

func TestByteBuffer_RetainRelease(t *testing.T) {
	b := NewPooled().Buffer(4)

	b.Retain()
	assert.EqualValues(t, 2, b.RefCount())

	assert.False(t, b.Release())
	assert.EqualValues(t, 1, b.RefCount())

	assert.True(t, b.Release())
	assert.EqualValues(t, 0, b.RefCount())
}

func TestSliceBuffer_WriteFullStopsAtCapacity(t *testing.T) {
	b := NewPooled().DirectBuffer(4)
	sb, _ := AsSliceBuffer(b)

	n := sb.WriteFull([]byte("abcdef"))
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, b.ReadableBytes())

	n = sb.WriteFull([]byte("x"))
	assert.Equal(t, 0, n)
}

func TestNewSliceBuffer_NegativeCapacityClampsToZero(t *testing.T) {
	b := NewPooled().Buffer(-5)
	assert.Equal(t, 0, b.Capacity())
}
