package loop

import "errors"

var (
	// ErrRejected is returned by Submit/Schedule once the loop has left
	// the Running state.
	ErrRejected = errors.New("loop: task rejected, event loop is shutting down or terminated")

	// ErrLoopFactory wraps a loop construction failure surfaced while
	// building an EventLoopGroup.
	ErrLoopFactory = errors.New("loop: failed to construct event loop")
)
