package option

import (
	"github.com/ionio/corenet/buffer"
	"github.com/ionio/corenet/msgsize"
	"github.com/ionio/corenet/rcvbuf"
)

// SizerFactory builds a fresh ReceiveBufferSizer for a channel; Config
// stores a factory rather than a shared instance because a Sizer carries
// per-channel read-loop state.
type SizerFactory func() rcvbuf.Sizer

var (
	Allocator            = New[buffer.Allocator]("ALLOCATOR", buffer.NewPooled())
	RcvbufAllocator      = New[SizerFactory]("RCVBUF_ALLOCATOR", func() rcvbuf.Sizer { return rcvbuf.DefaultAdaptive() })
	MessageSizeEstimator = New[*msgsize.Estimator]("MESSAGE_SIZE_ESTIMATOR", msgsize.Default)
)
