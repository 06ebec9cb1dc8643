package channel

import "errors"

// PipelineErrorCode identifies the structural-failure sub-case of a
// PipelineError.
type PipelineErrorCode int

const (
	DuplicateName PipelineErrorCode = iota
	HandlerNotFound
	NonSharableReuse
)

func (c PipelineErrorCode) String() string {
	switch c {
	case DuplicateName:
		return "duplicate_name"
	case HandlerNotFound:
		return "handler_not_found"
	case NonSharableReuse:
		return "non_sharable_reuse"
	default:
		return "unknown"
	}
}

// PipelineError is a structured error for pipeline mutation failures: a
// code, the name involved, and a message, so callers can branch with
// errors.As instead of string-matching.
type PipelineError struct {
	Code PipelineErrorCode
	Name string // the handler/context name involved, if any
	Msg  string
}

func (e *PipelineError) Error() string {
	if e.Name != "" {
		return "pipeline: " + e.Msg + ": " + e.Name
	}
	return "pipeline: " + e.Msg
}

func newPipelineError(code PipelineErrorCode, name, msg string) *PipelineError {
	return &PipelineError{Code: code, Name: name, Msg: msg}
}

// Rejected dispatch reuses loop.ErrRejected directly rather than wrapping
// it, since loop submissions and channel submissions share the same
// rejection semantics.
var (
	ErrChannel        = errors.New("channel: I/O or handler failure")
	ErrClosedChannel  = errors.New("channel: channel is closed")
	ErrConnectTimeout = errors.New("channel: connect timed out")
)
