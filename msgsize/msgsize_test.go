package msgsize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ionio/corenet/buffer"
)

type sizedThing struct{ n int }

func (s sizedThing) Size() int { return s.n }

func TestEstimator_ByteBuffer(t *testing.T) {
	b := buffer.NewPooled().Buffer(64)
	sb, _ := buffer.AsSliceBuffer(b)
	sb.WriteFull([]byte("hello world"))

	assert.Equal(t, 11, Default.Size(b))
}

func TestEstimator_Sized(t *testing.T) {
	e := &Estimator{}
	assert.Equal(t, 42, e.Size(sizedThing{n: 42}))
}

func TestEstimator_NegativeSizedClampsToZero(t *testing.T) {
	e := &Estimator{}
	assert.Equal(t, 0, e.Size(sizedThing{n: -5}))
}

func TestEstimator_UnknownDefaultsToZero(t *testing.T) {
	assert.Equal(t, 0, Default.Size("not a recognised message"))
}

func TestEstimator_UnknownSizeConfigured(t *testing.T) {
	e := &Estimator{UnknownSize: 128}
	assert.Equal(t, 128, e.Size(struct{}{}))
}
