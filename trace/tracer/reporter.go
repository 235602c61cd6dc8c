// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"sync"

	"github.com/flowtrace/client-go/internal/log"
)

// Reporter is the asynchronous span sink described in spec.md §4.3. Report
// must never block beyond a bounded, non-blocking enqueue and must never
// surface an error to the caller.
type Reporter interface {
	Report(span *Span)
	Close()
}

// NoopReporter discards every span.
type NoopReporter struct{}

func (NoopReporter) Report(*Span) {}
func (NoopReporter) Close()       {}

// InMemoryReporter retains every finished span, used for tests
// (spec.md §4.3).
type InMemoryReporter struct {
	mu    sync.Mutex
	spans []*Span
}

func NewInMemoryReporter() *InMemoryReporter {
	return &InMemoryReporter{}
}

func (r *InMemoryReporter) Report(span *Span) {
	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()
}

func (r *InMemoryReporter) Close() {}

// Spans returns a snapshot of every span reported so far.
func (r *InMemoryReporter) Spans() []*Span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Span(nil), r.spans...)
}

// Reset clears the retained spans.
func (r *InMemoryReporter) Reset() {
	r.mu.Lock()
	r.spans = nil
	r.mu.Unlock()
}

// LoggingReporter formats each finished span and writes it through the log
// sink, matching the teacher's logTraceWriter (DataDog-dd-trace-go:
// ddtrace/tracer/writer_test.go TestImplementsTraceWriter).
type LoggingReporter struct{}

func NewLoggingReporter() *LoggingReporter { return &LoggingReporter{} }

func (r *LoggingReporter) Report(span *Span) {
	log.Info("reporting span %q context=%s", span.OperationName(), span.Context())
}

func (r *LoggingReporter) Close() {}

// CompositeReporter fans out to an ordered list of reporters, each receiving
// every span in order (spec.md §4.3).
type CompositeReporter struct {
	reporters []Reporter
}

func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (r *CompositeReporter) Report(span *Span) {
	for _, rep := range r.reporters {
		rep.Report(span)
	}
}

func (r *CompositeReporter) Close() {
	for _, rep := range r.reporters {
		rep.Close()
	}
}
