// Package option implements a typed, thread-safe channel option map and
// the bit-exact channel option identities consumers configure by name.
//
// Options are process-wide, append-only identities deduplicated by name,
// backed by a lock-free concurrent map (github.com/puzpuzpuz/xsync/v3) so
// first-use interning never blocks concurrent lookups.
package option

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// pool is the process-wide name -> identity map. First use of a given
// name lazily creates its identity; lookups never block each other.
var pool = xsync.NewMapOf[*identity]()

// identity is the untyped handle behind every Option[T]; two Option[T]
// values with the same Name share the same identity, so Config can key
// its value map on the identity pointer regardless of T.
type identity struct {
	name string
}

func intern(name string) *identity {
	id, _ := pool.LoadOrCompute(name, func() *identity {
		return &identity{name: name}
	})
	return id
}

// Option is a stable, string-keyed, type-safe channel option identity.
// Two Options constructed with the same name (even in different
// packages) refer to the same underlying identity.
type Option[T any] struct {
	id  *identity
	def T
}

// New interns name in the process-wide pool and returns a typed Option
// with the given default value. Safe for concurrent first use.
func New[T any](name string, def T) Option[T] {
	return Option[T]{id: intern(name), def: def}
}

// Name returns the option's stable string identity.
func (o Option[T]) Name() string { return o.id.name }

// Default returns the option's default value.
func (o Option[T]) Default() T { return o.def }

func (o Option[T]) String() string { return fmt.Sprintf("Option(%s)", o.id.name) }

// Config is a typed option map: a Channel's Config. Reads and writes are
// safe for concurrent use from any goroutine.
type Config struct {
	values *xsync.MapOf[*identity, any]
}

// NewConfig returns an empty Config; Get on any Option returns that
// Option's default until explicitly Set.
func NewConfig() *Config {
	return &Config{values: xsync.NewMapOf[any]()}
}

// Get returns the value of opt in c, or opt's default if unset.
func Get[T any](c *Config, opt Option[T]) T {
	if v, ok := c.values.Load(opt.id); ok {
		if tv, ok := v.(T); ok {
			return tv
		}
	}
	return opt.def
}

// Set stores val for opt in c, visible to any subsequent Get from any
// goroutine.
func Set[T any](c *Config, opt Option[T], val T) {
	c.values.Store(opt.id, val)
}

// IsSet reports whether opt has been explicitly Set on c (as opposed to
// reading its Default).
func IsSet[T any](c *Config, opt Option[T]) bool {
	_, ok := c.values.Load(opt.id)
	return ok
}

// ---- bit-exact channel options ----

var (
	AutoRead                 = New("AUTO_READ", true)
	AllowHalfClosure         = New("ALLOW_HALF_CLOSURE", false)
	ConnectTimeout           = New("CONNECT_TIMEOUT", 30*time.Second)
	WriteSpinCount           = New("WRITE_SPIN_COUNT", 16)
	WriteBufferHighWaterMark = New("WRITE_BUFFER_HIGH_WATER_MARK", 64*1024)
	WriteBufferLowWaterMark  = New("WRITE_BUFFER_LOW_WATER_MARK", 32*1024)

	SoBroadcast            = New("SO_BROADCAST", false)
	SoKeepalive            = New("SO_KEEPALIVE", false)
	SoSndbuf               = New("SO_SNDBUF", 0)
	SoRcvbuf               = New("SO_RCVBUF", 0)
	SoReuseaddr            = New("SO_REUSEADDR", false)
	SoReuseport            = New("SO_REUSEPORT", false)
	SoLinger               = New("SO_LINGER", -1)
	SoBacklog              = New("SO_BACKLOG", 128)
	SoTimeout              = New("SO_TIMEOUT", time.Duration(0))
	IPTos                  = New("IP_TOS", 0)
	IPMulticastAddr        = New("IP_MULTICAST_ADDR", "")
	IPMulticastIf          = New("IP_MULTICAST_IF", "")
	IPMulticastTTL         = New("IP_MULTICAST_TTL", 1)
	IPMulticastLoopDisable = New("IP_MULTICAST_LOOP_DISABLED", false)
	TCPNodelay             = New("TCP_NODELAY", true)
)
