// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import "fmt"

// MalformedStateError is returned by Extract when the state header is
// present but cannot be parsed (spec.md §7).
type MalformedStateError struct {
	Value string
	Cause error
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("tracer: malformed trace state %q: %v", e.Value, e.Cause)
}

func (e *MalformedStateError) Unwrap() error { return e.Cause }

// EmptyStateError is returned by Extract when the carrier holds neither trace
// state nor a debug id, and by ParseSpanContext for an empty string
// (spec.md §7). Tracer.Extract counts it as a decoding error, exactly like
// MalformedStateError.
type EmptyStateError struct{}

func (e *EmptyStateError) Error() string { return "tracer: empty trace state" }

// UnsupportedFormatError is returned by Inject/Extract when no codec is
// registered for the requested format (spec.md §4.1, §7). Unlike the other
// error kinds, this one is a programmer error and is always surfaced.
type UnsupportedFormatError struct {
	Format interface{}
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("tracer: unsupported carrier format %v", e.Format)
}

// SenderError wraps a transport failure reported by a Sender (spec.md §6,
// §7). DroppedSpans is the number of spans the sender was unable to emit as
// a result; the reporter counts it but never surfaces it to the application.
type SenderError struct {
	Cause        error
	DroppedSpans int
}

func (e *SenderError) Error() string {
	return fmt.Sprintf("tracer: sender error (dropped %d spans): %v", e.DroppedSpans, e.Cause)
}

func (e *SenderError) Unwrap() error { return e.Cause }

// SamplingStrategyError wraps a failure to fetch or parse a remote sampling
// strategy (spec.md §4.2, §7). The RemoteSampler counts it and retains its
// current inner sampler.
type SamplingStrategyError struct {
	Phase string // "query" or "parsing"
	Cause error
}

func (e *SamplingStrategyError) Error() string {
	return fmt.Sprintf("tracer: sampling strategy %s error: %v", e.Phase, e.Cause)
}

func (e *SamplingStrategyError) Unwrap() error { return e.Cause }
