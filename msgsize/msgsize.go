// Package msgsize implements the outbound message size estimation
// contract: a pure cost function used by OutboundBuffer to track
// pendingBytes without caring what kind of message is being written.
package msgsize

import "github.com/ionio/corenet/buffer"

// Sized is implemented by any outbound message that knows its own byte
// cost, letting callers bypass Estimator's type-switch entirely.
type Sized interface {
	Size() int
}

// Estimator computes a byte cost for an arbitrary outbound message.
// Recognises buffer.ByteBuffer (readable length) and Sized values;
// anything else costs UnknownSize.
type Estimator struct {
	// UnknownSize is returned for messages this estimator cannot cost.
	// Defaults to 0.
	UnknownSize int
}

// Default is the zero-value Estimator (UnknownSize == 0).
var Default = &Estimator{}

// Size returns a byte cost for msg, always >= 0.
func (e *Estimator) Size(msg any) int {
	switch v := msg.(type) {
	case buffer.ByteBuffer:
		if n := v.ReadableBytes(); n > 0 {
			return n
		}
		return 0
	case Sized:
		if n := v.Size(); n > 0 {
			return n
		}
		return 0
	default:
		if e == nil || e.UnknownSize < 0 {
			return 0
		}
		return e.UnknownSize
	}
}
