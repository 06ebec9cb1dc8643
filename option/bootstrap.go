package option

import (
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/spf13/cast"
)

// setter applies a raw external value (string, or decoded JSON scalar) to
// c for one option, coercing as needed.
type setter func(c *Config, raw any) error

// stringOptions maps every scalar (non-struct, non-interface) channel
// option's name to a setter, so external configuration (a flag set, an
// env map, a JSON document) can target options by their stable names
// without the caller needing to know Option[T]'s T.
var stringOptions = map[string]setter{
	AutoRead.Name():                 func(c *Config, v any) error { return setBool(c, AutoRead, v) },
	AllowHalfClosure.Name():         func(c *Config, v any) error { return setBool(c, AllowHalfClosure, v) },
	ConnectTimeout.Name():           func(c *Config, v any) error { return setDuration(c, ConnectTimeout, v) },
	WriteSpinCount.Name():           func(c *Config, v any) error { return setInt(c, WriteSpinCount, v) },
	WriteBufferHighWaterMark.Name(): func(c *Config, v any) error { return setInt(c, WriteBufferHighWaterMark, v) },
	WriteBufferLowWaterMark.Name():  func(c *Config, v any) error { return setInt(c, WriteBufferLowWaterMark, v) },
	SoBroadcast.Name():              func(c *Config, v any) error { return setBool(c, SoBroadcast, v) },
	SoKeepalive.Name():              func(c *Config, v any) error { return setBool(c, SoKeepalive, v) },
	SoSndbuf.Name():                 func(c *Config, v any) error { return setInt(c, SoSndbuf, v) },
	SoRcvbuf.Name():                 func(c *Config, v any) error { return setInt(c, SoRcvbuf, v) },
	SoReuseaddr.Name():              func(c *Config, v any) error { return setBool(c, SoReuseaddr, v) },
	SoReuseport.Name():              func(c *Config, v any) error { return setBool(c, SoReuseport, v) },
	SoLinger.Name():                 func(c *Config, v any) error { return setInt(c, SoLinger, v) },
	SoBacklog.Name():                func(c *Config, v any) error { return setInt(c, SoBacklog, v) },
	SoTimeout.Name():                func(c *Config, v any) error { return setDuration(c, SoTimeout, v) },
	IPTos.Name():                    func(c *Config, v any) error { return setInt(c, IPTos, v) },
	IPMulticastAddr.Name():          func(c *Config, v any) error { return setString(c, IPMulticastAddr, v) },
	IPMulticastIf.Name():            func(c *Config, v any) error { return setString(c, IPMulticastIf, v) },
	IPMulticastTTL.Name():           func(c *Config, v any) error { return setInt(c, IPMulticastTTL, v) },
	IPMulticastLoopDisable.Name():   func(c *Config, v any) error { return setBool(c, IPMulticastLoopDisable, v) },
	TCPNodelay.Name():               func(c *Config, v any) error { return setBool(c, TCPNodelay, v) },
}

func setBool(c *Config, opt Option[bool], v any) error {
	b, err := cast.ToBoolE(v)
	if err != nil {
		return err
	}
	Set(c, opt, b)
	return nil
}

func setInt(c *Config, opt Option[int], v any) error {
	i, err := cast.ToIntE(v)
	if err != nil {
		return err
	}
	Set(c, opt, i)
	return nil
}

func setString(c *Config, opt Option[string], v any) error {
	Set(c, opt, cast.ToString(v))
	return nil
}

func setDuration(c *Config, opt Option[time.Duration], v any) error {
	d, err := cast.ToDurationE(v)
	if err != nil {
		return err
	}
	Set(c, opt, d)
	return nil
}

// ApplyStrings coerces a map of option-name -> raw string (e.g. parsed
// flags, an env prefix dump) into typed Config values using spf13/cast.
// Unknown keys and keys naming a non-scalar option (ALLOCATOR,
// RCVBUF_ALLOCATOR, MESSAGE_SIZE_ESTIMATOR) are reported in the returned
// error but do not prevent the rest from applying.
func (c *Config) ApplyStrings(values map[string]string) error {
	var errs []error
	for name, raw := range values {
		set, ok := stringOptions[name]
		if !ok {
			errs = append(errs, fmt.Errorf("option %q: unknown or non-scalar option", name))
			continue
		}
		if err := set(c, raw); err != nil {
			errs = append(errs, fmt.Errorf("option %q: %w", name, err))
		}
	}
	return joinErrors(errs)
}

// LoadJSON applies a flat JSON object {"OPTION_NAME": value, ...} to c,
// using jsonparser for zero-allocation field extraction. Each top-level
// key is matched against the scalar option names; other keys are ignored
// (unlike ApplyStrings, LoadJSON is meant for partial overrides of a
// known-shape document and silently skips the rest).
func (c *Config) LoadJSON(doc []byte) error {
	var errs []error
	err := jsonparser.ObjectEach(doc, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		set, ok := stringOptions[name]
		if !ok {
			return nil // ignore unknown/non-scalar keys
		}

		var raw any
		switch dataType {
		case jsonparser.Boolean:
			raw, _ = jsonparser.ParseBoolean(value)
		case jsonparser.Number:
			raw = string(value) // cast.ToIntE/ToDurationE parse numeric strings fine
		default:
			raw = string(value)
		}

		if err := set(c, raw); err != nil {
			errs = append(errs, fmt.Errorf("option %q: %w", name, err))
		}
		return nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msg := "option: "
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}
