// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"fmt"
	"sync"

	"github.com/flowtrace/client-go/trace"
)

// logEntry is one entry in a span's log sequence (spec.md §3 LogEntry).
type logEntry struct {
	timestampMicros int64
	fields          map[string]interface{}
}

// Span is the mutable record of a single operation (spec.md §3). It is
// owned by a single goroutine until Finish is called; after Finish it is
// immutable and referenced at most once by the Reporter queue.
type Span struct {
	tracer        *Tracer
	operationName string

	startMicros int64
	startTicks  int64 // valid only when the clock lacks microsecond accuracy
	useTicks    bool
	durationNs  int64
	finished    bool

	tags       map[string]interface{}
	logs       []logEntry
	references []trace.Reference

	mu      sync.Mutex // guards context, since SetBaggageItem publishes a new snapshot
	context SpanContext
}

var _ trace.Span = (*Span)(nil)

// Context returns the span's current SpanContext. Safe to call while other
// goroutines hold a reference to an earlier snapshot: SpanContext values are
// immutable, so the caller never observes a half-updated baggage map.
func (s *Span) Context() trace.SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// spanContext is the typed accessor used internally (avoids repeated type
// assertions back from trace.SpanContext).
func (s *Span) spanContext() SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// SetOperationName changes the operation name. Not safe for concurrent use.
func (s *Span) SetOperationName(name string) trace.Span {
	s.operationName = name
	return s
}

// SetTag records a tag, converting value to one of the canonical tag value
// types (string, int64, uint64, float64, bool) per spec.md §3. Not safe for
// concurrent use.
func (s *Span) SetTag(key string, value interface{}) trace.Span {
	if s.tags == nil {
		s.tags = make(map[string]interface{})
	}
	s.tags[key] = normalizeTagValue(value)
	return s
}

// normalizeTagValue converts arbitrary inputs deterministically into one of
// string, int64, uint64, float64 or bool (spec.md §3 invariants).
func normalizeTagValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string, int64, uint64, float64, bool:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return uint64(v)
	case uint32:
		return uint64(v)
	case float32:
		return float64(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// LogFields appends one log entry stamped with the current wall time. Not
// safe for concurrent use.
func (s *Span) LogFields(fields map[string]interface{}) {
	normalized := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		normalized[k] = normalizeTagValue(v)
	}
	s.logs = append(s.logs, logEntry{
		timestampMicros: s.tracer.clock().CurrentTimeMicros(),
		fields:          normalized,
	})
}

// SetBaggageItem publishes a new SpanContext with key=value merged into the
// baggage snapshot. This is the one mutator that must be atomic with respect
// to concurrent readers of Context() (spec.md §5), hence the mutex.
func (s *Span) SetBaggageItem(key, value string) trace.Span {
	s.mu.Lock()
	s.context = s.context.withBaggageItem(key, value)
	s.mu.Unlock()
	return s
}

// BaggageItem returns the current value for key, or "" if unset.
func (s *Span) BaggageItem(key string) string {
	return s.spanContext().BaggageItem(key)
}

// Finish marks the span complete, computes its duration and (if sampled)
// hands it to the tracer's reporter (spec.md §4.4 "On finish").
func (s *Span) Finish(opts ...trace.FinishOption) {
	var cfg trace.FinishConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Error != nil {
		s.SetTag("error", true)
		s.SetTag("error.message", cfg.Error.Error())
	}
	s.finish(cfg.FinishTime)
}

func (s *Span) finish(finishMicros int64) {
	if s.finished {
		return
	}
	s.finished = true

	clk := s.tracer.clock()
	if s.useTicks {
		s.durationNs = clk.CurrentNanoTicks() - s.startTicks
	} else {
		end := finishMicros
		if end == 0 {
			end = clk.CurrentTimeMicros()
		}
		s.durationNs = (end - s.startMicros) * 1000
	}

	ctx := s.spanContext()
	s.tracer.metrics().spansFinishedLifecycle.Inc(1)
	if ctx.IsSampled() {
		s.tracer.reporter.Report(s)
	}
}

// DurationNanos returns the span's duration once finished; 0 before Finish.
func (s *Span) DurationNanos() int64 { return s.durationNs }

// StartTimeMicros returns the span's wall-clock start time.
func (s *Span) StartTimeMicros() int64 { return s.startMicros }

// OperationName returns the current operation name.
func (s *Span) OperationName() string { return s.operationName }

// Tags returns a shallow copy of the span's tags. Safe to call only after
// Finish, or from the owning goroutine before it.
func (s *Span) Tags() map[string]interface{} {
	cp := make(map[string]interface{}, len(s.tags))
	for k, v := range s.tags {
		cp[k] = v
	}
	return cp
}

// Logs returns the span's recorded log entries in append order.
func (s *Span) Logs() []map[string]interface{} {
	out := make([]map[string]interface{}, len(s.logs))
	for i, l := range s.logs {
		out[i] = l.fields
	}
	return out
}

// References returns the references supplied at span creation.
func (s *Span) References() []trace.Reference {
	return s.references
}
