package channel

import "github.com/ionio/corenet/loop"

// Metadata is a channel's read-only descriptor: the default
// cap on messages read per read-loop iteration, and whether half-closure
// (one direction shut, the other still open) is meaningful for this
// transport kind.
type Metadata struct {
	DefaultMaxMessagesPerRead int
	HasHalfClosure            bool
}

// StreamMetadata is the Metadata of a byte-stream transport (e.g. TCP):
// many small reads per loop iteration, half-closure meaningful.
var StreamMetadata = Metadata{DefaultMaxMessagesPerRead: 16, HasHalfClosure: true}

// DatagramMetadata is the Metadata of a message-oriented transport
// (e.g. UDP): one message is usually one read, no half-closure.
var DatagramMetadata = Metadata{DefaultMaxMessagesPerRead: 1, HasHalfClosure: false}

// Unsafe is the transport-implemented, pipeline-head-consumed interface.
// Concrete transports (sockets, the in-memory loopback transport, test
// stubs) implement this. The pipeline's head context calls it for the
// outbound operations; Channel.RegisterAsync calls RegisterAsync directly.
type Unsafe interface {
	RegisterAsync(loop *loop.EventLoop, promise *loop.Future)
	BindAsync(addr string, promise *loop.Future)
	ConnectAsync(remote, local string, promise *loop.Future)
	DisconnectAsync(promise *loop.Future)
	CloseAsync(promise *loop.Future)
	DeregisterAsync(promise *loop.Future)
	BeginRead()
	Write(msg any, promise *loop.Future)
	Flush()

	// OutboundBuffer returns the buffer this transport should drain when
	// flushing, so Unsafe implementations don't need a back-reference to
	// Channel just to find it.
	OutboundBuffer() *OutboundBuffer
}
