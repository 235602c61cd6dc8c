// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

// Package trace defines the contracts shared by the tracing core and its
// collaborators. It intentionally carries no implementation: concrete types
// live in trace/tracer, and external capabilities (wire transport, metrics
// backend, clock, log sink) are consumed here as interfaces only.
package trace

import "context"

// Tracer creates spans and propagates their contexts across process
// boundaries. All methods are safe for concurrent use.
type Tracer interface {
	// StartSpan starts a new span with the given operation name and options.
	StartSpan(operationName string, opts ...StartSpanOption) Span

	// Inject writes sc into carrier using the codec registered for format.
	Inject(sc SpanContext, format interface{}, carrier interface{}) error

	// Extract reads a SpanContext out of carrier using the codec registered
	// for format. Failures are returned as the implementation's typed errors
	// (empty state, malformed state, unsupported format); never panics on
	// malformed input.
	Extract(format interface{}, carrier interface{}) (SpanContext, error)

	// Close flushes and releases the tracer's background resources
	// (reporter worker, sampler poller). Safe to call more than once.
	Close() error
}

// Span is a single timed operation. Mutator methods (SetTag, LogFields,
// SetBaggageItem, Finish) are NOT safe for concurrent use by more than one
// goroutine; a Span is owned by the goroutine that started it until Finish.
type Span interface {
	Context() SpanContext
	SetOperationName(name string) Span
	SetTag(key string, value interface{}) Span
	LogFields(fields map[string]interface{})
	SetBaggageItem(key, value string) Span
	BaggageItem(key string) string
	Finish(opts ...FinishOption)
}

// SpanContext is the immutable, propagable identity of a span: trace/span
// ids, sampling flags and a baggage snapshot. The interface has no mutators;
// a baggage change produces a new value and SpanContext itself never changes.
type SpanContext interface {
	TraceIDHigh() uint64
	TraceIDLow() uint64
	SpanID() uint64
	ParentID() uint64
	Flags() byte
	IsSampled() bool
	IsDebug() bool
	IsDebugIDContainerOnly() bool
	DebugID() string
	ForeachBaggageItem(handler func(k, v string) bool)
	BaggageItem(key string) string
	// String renders the default wire form: traceIdHex:spanIdHex:parentIdHex:flagsHex.
	String() string
}

// ReferenceKind describes the relationship a Reference expresses between a
// new span and a context it was built from.
type ReferenceKind int

const (
	// ChildOf means the referenced context is the parent of the new span
	// and the new span depends on the referenced span's completion.
	ChildOf ReferenceKind = iota
	// FollowsFrom means the referenced context caused the new span to
	// exist but does not depend on its completion.
	FollowsFrom
)

// Reference links a new span to an existing SpanContext.
type Reference struct {
	Kind    ReferenceKind
	Context SpanContext
}

// StartSpanOption configures a span at creation time.
type StartSpanOption func(cfg *StartSpanConfig)

// StartSpanConfig is the accumulated configuration a StartSpanOption mutates.
// It is exported so collaborators (e.g. a façade adapter) can build their own
// options without reaching into trace/tracer internals.
type StartSpanConfig struct {
	References   []Reference
	StartTime    int64 // wall microseconds; zero means "ask the clock"
	Tags         map[string]interface{}
	IgnoreParent bool
}

// FinishOption configures a span at finish time.
type FinishOption func(cfg *FinishConfig)

// FinishConfig is the accumulated configuration a FinishOption mutates.
type FinishConfig struct {
	FinishTime int64 // wall microseconds; zero means "ask the clock"
	Error      error
}

// Clock is the time source capability (spec.md §6, §9). Implementations may
// be trivial wrappers over time.Now, but the indirection lets high-resolution
// platforms report monotonic ticks separately from wall time.
type Clock interface {
	CurrentTimeMicros() int64
	CurrentNanoTicks() int64
	IsMicrosAccurate() bool
}

// Sender is the external transport capability consumed by RemoteReporter.
// Its wire encoding and network behavior are explicitly out of this core's
// scope; only the contract is defined here.
type Sender interface {
	// Append buffers one span. Returns the number of spans flushed as a
	// side effect (0 if merely buffered), or a *SenderError on failure.
	Append(span Span) (int, error)
	// Flush forces emission of buffered spans, returning the count emitted.
	Flush() (int, error)
	// Close performs a final flush and releases resources.
	Close() (int, error)
}

// MetricsFactory creates named, tag-qualified counters, gauges and timers
// (spec.md §6). Tag keys are stable across the core: state, sampled, group,
// result, phase.
type MetricsFactory interface {
	Counter(name string, tags map[string]string) Counter
	Gauge(name string, tags map[string]string) Gauge
	Timer(name string, tags map[string]string) Timer
}

// Counter accumulates a monotonically increasing value.
type Counter interface {
	Inc(delta int64)
}

// Gauge reports a point-in-time value.
type Gauge interface {
	Update(value float64)
}

// Timer records durations.
type Timer interface {
	Record(d int64)
}

// Logger is a logging sink capability. trace/tracer does not use it: the core
// logs through the package-level functions of internal/log, whose Logger
// interface (a single Log method) does not satisfy this one.
type Logger interface {
	Error(msg string)
	Infof(msg string, args ...interface{})
}

// ctxKey is an unexported type so context values set by this package never
// collide with keys set by other packages.
type ctxKey struct{}

// ContextWithSpan returns a new context.Context that carries span.
func ContextWithSpan(ctx context.Context, span Span) context.Context {
	return context.WithValue(ctx, ctxKey{}, span)
}

// SpanFromContext returns the Span previously stored by ContextWithSpan, if any.
func SpanFromContext(ctx context.Context) (Span, bool) {
	span, ok := ctx.Value(ctxKey{}).(Span)
	return span, ok
}
