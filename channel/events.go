package channel

// Event identifies one of the handler-chain events a Pipeline propagates.
//
// The source counts "the 16 events" but its own enumeration lists 9
// inbound events and 8 outbound events, 17 in total. All 17 are
// implemented here unchanged; see DESIGN.md for the count discrepancy.
type Event uint8

const (
	EventChannelRegistered Event = iota
	EventChannelUnregistered
	EventChannelActive
	EventChannelInactive
	EventChannelRead
	EventChannelReadComplete
	EventChannelWritabilityChanged
	EventUserEventTriggered
	EventExceptionCaught

	EventBind
	EventConnect
	EventDisconnect
	EventClose
	EventDeregister
	EventRead
	EventWrite
	EventFlush

	eventCount
)

func (e Event) String() string {
	switch e {
	case EventChannelRegistered:
		return "channelRegistered"
	case EventChannelUnregistered:
		return "channelUnregistered"
	case EventChannelActive:
		return "channelActive"
	case EventChannelInactive:
		return "channelInactive"
	case EventChannelRead:
		return "channelRead"
	case EventChannelReadComplete:
		return "channelReadComplete"
	case EventChannelWritabilityChanged:
		return "channelWritabilityChanged"
	case EventUserEventTriggered:
		return "userEventTriggered"
	case EventExceptionCaught:
		return "exceptionCaught"
	case EventBind:
		return "bind"
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventClose:
		return "close"
	case EventDeregister:
		return "deregister"
	case EventRead:
		return "read"
	case EventWrite:
		return "write"
	case EventFlush:
		return "flush"
	default:
		return "unknown"
	}
}

// Direction is the traversal direction of an Event through the pipeline.
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

var eventDirection = [eventCount]Direction{
	EventChannelRegistered:          Inbound,
	EventChannelUnregistered:        Inbound,
	EventChannelActive:              Inbound,
	EventChannelInactive:            Inbound,
	EventChannelRead:                Inbound,
	EventChannelReadComplete:        Inbound,
	EventChannelWritabilityChanged:  Inbound,
	EventUserEventTriggered:         Inbound,
	EventExceptionCaught:            Inbound,
	EventBind:                       Outbound,
	EventConnect:                    Outbound,
	EventDisconnect:                 Outbound,
	EventClose:                      Outbound,
	EventDeregister:                 Outbound,
	EventRead:                       Outbound,
	EventWrite:                      Outbound,
	EventFlush:                      Outbound,
}

// Mask is a skip-mask: bit Event is set iff the handler at a context does
// not have a concrete implementation of that event and should be skipped
// during traversal.
type Mask uint32

func bit(e Event) Mask { return 1 << uint(e) }

func (m Mask) has(e Event) bool { return m&bit(e) != 0 }
