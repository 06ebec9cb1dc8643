package channel

import (
	"time"

	"github.com/ionio/corenet/buffer"
	"github.com/ionio/corenet/option"
	"github.com/ionio/corenet/rcvbuf"
)

// Config is a channel's typed option map, a thin
// convenience wrapper over option.Config's generic Get/Set so channel
// code can call e.g. config.AutoRead() instead of threading Option
// values around.
type Config struct {
	values *option.Config
}

func newConfig() *Config {
	return &Config{values: option.NewConfig()}
}

// Raw exposes the underlying generic option map, for ApplyStrings/LoadJSON
// bootstrap or direct Get/Set of options this wrapper doesn't name.
func (c *Config) Raw() *option.Config { return c.values }

func (c *Config) Allocator() buffer.Allocator {
	return option.Get(c.values, option.Allocator)
}

func (c *Config) NewRcvbufSizer() rcvbuf.Sizer {
	factory := option.Get(c.values, option.RcvbufAllocator)
	return factory()
}

func (c *Config) estimateSize(msg any) int {
	return option.Get(c.values, option.MessageSizeEstimator).Size(msg)
}

func (c *Config) AutoRead() bool            { return option.Get(c.values, option.AutoRead) }
func (c *Config) AllowHalfClosure() bool    { return option.Get(c.values, option.AllowHalfClosure) }
func (c *Config) ConnectTimeout() time.Duration {
	return option.Get(c.values, option.ConnectTimeout)
}
func (c *Config) WriteSpinCount() int { return option.Get(c.values, option.WriteSpinCount) }

func (c *Config) WriteBufferHighWaterMark() int {
	return option.Get(c.values, option.WriteBufferHighWaterMark)
}

func (c *Config) WriteBufferLowWaterMark() int {
	return option.Get(c.values, option.WriteBufferLowWaterMark)
}

func (c *Config) SetWriteBufferWaterMarks(low, high int) {
	option.Set(c.values, option.WriteBufferLowWaterMark, low)
	option.Set(c.values, option.WriteBufferHighWaterMark, high)
}
