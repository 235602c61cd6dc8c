// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"fmt"
	"strconv"
	"strings"
)

// Flags bits (spec.md §3). Bit 0 is the sampled decision, bit 1 is the debug
// flag; other bits are reserved and must be preserved verbatim across
// propagation and across parent -> child inheritance.
const (
	flagSampled byte = 1 << 0
	flagDebug   byte = 1 << 1
)

// SpanContext is the immutable identity + baggage value object described in
// spec.md §3/§4.1. All mutator-shaped methods return a new value; the
// original is never touched, so a SpanContext can be freely shared across
// goroutines and child spans once constructed.
//
// Grounded on DataDog-dd-trace-go's own SpanContext (ddtrace/tracer/spancontext.go,
// retrieved from the sibling snapshot kmrgirish-dd-trace-go): the same
// separation between "locally propagating" fields (trace/span back
// references) and "cross-process propagating" fields (trace/span ids,
// flags, baggage) is kept, minus the Datadog-specific priority/origin/tag
// machinery this spec does not call for.
type SpanContext struct {
	traceIDHigh  uint64
	traceIDLow   uint64
	spanID       uint64
	parentSpanID uint64
	flags        byte
	baggage      map[string]string // immutable snapshot; never mutated in place
	debugID      string
}

// emptySpanContext is the zero value, useful as a sentinel "no parent".
var emptySpanContext = SpanContext{}

func newRootSpanContext(traceIDHigh, traceIDLow, spanID uint64, flags byte) SpanContext {
	return SpanContext{
		traceIDHigh: traceIDHigh,
		traceIDLow:  traceIDLow,
		spanID:      spanID,
		flags:       flags,
	}
}

func newChildSpanContext(parent SpanContext, spanID uint64) SpanContext {
	return SpanContext{
		traceIDHigh:  parent.traceIDHigh,
		traceIDLow:   parent.traceIDLow,
		spanID:       spanID,
		parentSpanID: parent.spanID,
		flags:        parent.flags,
		baggage:      parent.baggage,
	}
}

func newDebugIDContainer(debugID string) SpanContext {
	return SpanContext{debugID: debugID}
}

// TraceIDHigh returns the high 64 bits of the 128-bit trace id (0 if the
// trace only uses 64 bits).
func (c SpanContext) TraceIDHigh() uint64 { return c.traceIDHigh }

// TraceIDLow returns the low/primary 64 bits of the trace id.
func (c SpanContext) TraceIDLow() uint64 { return c.traceIDLow }

// SpanID returns the span's own id.
func (c SpanContext) SpanID() uint64 { return c.spanID }

// ParentID returns the parent span's id, or 0 if this is a root span.
func (c SpanContext) ParentID() uint64 { return c.parentSpanID }

// Flags returns the raw flags byte.
func (c SpanContext) Flags() byte { return c.flags }

// IsSampled reports whether bit 0 is set.
func (c SpanContext) IsSampled() bool { return c.flags&flagSampled != 0 }

// IsDebug reports whether bit 1 is set.
func (c SpanContext) IsDebug() bool { return c.flags&flagDebug != 0 }

// IsDebugIDContainerOnly reports whether this context carries only a debug
// id and no real trace/span identity (spec.md §4.1 debug-id back-channel).
func (c SpanContext) IsDebugIDContainerOnly() bool {
	return c.traceIDLow == 0 && c.traceIDHigh == 0 && c.spanID == 0 && c.debugID != ""
}

// DebugID returns the debug-id value, if any.
func (c SpanContext) DebugID() string { return c.debugID }

// ForeachBaggageItem iterates baggage items in an unspecified order until
// handler returns false.
func (c SpanContext) ForeachBaggageItem(handler func(k, v string) bool) {
	for k, v := range c.baggage {
		if !handler(k, v) {
			return
		}
	}
}

// BaggageItem returns the value for key, or "" if absent.
func (c SpanContext) BaggageItem(key string) string {
	return c.baggage[key]
}

// withBaggageItem returns a new SpanContext whose baggage snapshot has key
// set to value; c itself is untouched (spec.md §3 invariants).
func (c SpanContext) withBaggageItem(key, value string) SpanContext {
	next := make(map[string]string, len(c.baggage)+1)
	for k, v := range c.baggage {
		next[k] = v
	}
	next[key] = value
	c.baggage = next
	return c
}

// mergeBaggage returns a new SpanContext with baggage from other layered on
// top of c's own baggage (spec.md §4.4 step 3: later references win ties).
func (c SpanContext) mergeBaggage(other SpanContext) SpanContext {
	if len(other.baggage) == 0 {
		return c
	}
	next := make(map[string]string, len(c.baggage)+len(other.baggage))
	for k, v := range c.baggage {
		next[k] = v
	}
	for k, v := range other.baggage {
		next[k] = v
	}
	c.baggage = next
	return c
}

// String renders the default wire form described in spec.md §4.1:
// traceIdHex:spanIdHex:parentIdHex:flagsHex, lowercase, no padding, except
// that the low half of a 128-bit trace id is zero-padded to 16 digits.
func (c SpanContext) String() string {
	var traceID string
	if c.traceIDHigh != 0 {
		traceID = fmt.Sprintf("%x%016x", c.traceIDHigh, c.traceIDLow)
	} else {
		traceID = strconv.FormatUint(c.traceIDLow, 16)
	}
	return fmt.Sprintf("%s:%x:%x:%x", traceID, c.spanID, c.parentSpanID, c.flags)
}

// ParseSpanContext parses the wire form produced by String. It is lenient
// to case and to leading zeros but rejects a wrong colon count
// (MalformedStateError) and an empty string (EmptyStateError), per
// spec.md §4.1 and the concrete scenario in §8.1/§8.2.
func ParseSpanContext(s string) (SpanContext, error) {
	if s == "" {
		return SpanContext{}, &EmptyStateError{}
	}
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return SpanContext{}, &MalformedStateError{Value: s, Cause: fmt.Errorf("expected 4 colon-separated fields, got %d", len(parts))}
	}
	traceHex, spanHex, parentHex, flagsHex := parts[0], parts[1], parts[2], parts[3]
	if traceHex == "" || spanHex == "" || parentHex == "" || flagsHex == "" {
		return SpanContext{}, &MalformedStateError{Value: s, Cause: fmt.Errorf("empty field")}
	}
	var high, low uint64
	var err error
	if len(traceHex) > 16 {
		high, err = strconv.ParseUint(traceHex[:len(traceHex)-16], 16, 64)
		if err != nil {
			return SpanContext{}, &MalformedStateError{Value: s, Cause: err}
		}
		low, err = strconv.ParseUint(traceHex[len(traceHex)-16:], 16, 64)
	} else {
		low, err = strconv.ParseUint(traceHex, 16, 64)
	}
	if err != nil {
		return SpanContext{}, &MalformedStateError{Value: s, Cause: err}
	}
	spanID, err := strconv.ParseUint(spanHex, 16, 64)
	if err != nil {
		return SpanContext{}, &MalformedStateError{Value: s, Cause: err}
	}
	parentID, err := strconv.ParseUint(parentHex, 16, 64)
	if err != nil {
		return SpanContext{}, &MalformedStateError{Value: s, Cause: err}
	}
	flags, err := strconv.ParseUint(flagsHex, 16, 8)
	if err != nil {
		return SpanContext{}, &MalformedStateError{Value: s, Cause: err}
	}
	return SpanContext{
		traceIDHigh:  high,
		traceIDLow:   low,
		spanID:       spanID,
		parentSpanID: parentID,
		flags:        byte(flags),
	}, nil
}
