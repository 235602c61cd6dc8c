// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

// Package tracer implements the core of the tracing client: span
// construction and propagation, sampling, and asynchronous reporting
// (spec.md §2). It is grounded on DataDog-dd-trace-go's ddtrace/tracer
// package -- see DESIGN.md for the per-file grounding ledger.
package tracer

import (
	"fmt"

	"github.com/flowtrace/client-go/trace"
	"github.com/flowtrace/client-go/trace/ext"
)

// Tracer is the façade that wires sampler, reporter and propagation
// registry together and exposes span-builder semantics (spec.md §4.4).
type Tracer struct {
	serviceName string
	sampler     Sampler
	reporter    Reporter
	registry    *PropagatorRegistry
	cfgClock    trace.Clock
	metricsSink *Metrics
	processTags map[string]interface{}

	gen128Bit           bool
	zipkinSharedRPCSpan bool

	ids *idGenerator
}

var _ trace.Tracer = (*Tracer)(nil)

// NewTracer builds a Tracer from serviceName, sampler and reporter, plus
// optional TracerOptions (spec.md §4.4 "Configuration at construction").
// serviceName must be non-empty -- this is the one programmer error the
// core surfaces at construction rather than at call time.
func NewTracer(serviceName string, sampler Sampler, reporter Reporter, opts ...TracerOption) (*Tracer, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("tracer: service name must not be empty")
	}
	t := &Tracer{
		serviceName: serviceName,
		sampler:     sampler,
		reporter:    reporter,
		registry:    NewPropagatorRegistry(),
		cfgClock:    SystemClock,
		processTags: map[string]interface{}{},
		ids:         newIDGenerator(int64(SystemClock.CurrentNanoTicks())),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.metricsSink == nil {
		t.metricsSink = newMetrics(NullMetricsFactory)
	}
	return t, nil
}

func (t *Tracer) clock() trace.Clock            { return t.cfgClock }
func (t *Tracer) metrics() *Metrics              { return t.metricsSink }
func (t *Tracer) ServiceName() string           { return t.serviceName }
func (t *Tracer) Registry() *PropagatorRegistry { return t.registry }

// ProcessTags returns the process-level tags configured via
// WithProcessTags. A concrete Sender reads these when constructing the
// process descriptor for a batch; the core itself does not serialize them.
func (t *Tracer) ProcessTags() map[string]interface{} {
	cp := make(map[string]interface{}, len(t.processTags))
	for k, v := range t.processTags {
		cp[k] = v
	}
	return cp
}

// Inject writes sc into carrier through the codec registered for format.
func (t *Tracer) Inject(sc trace.SpanContext, format interface{}, carrier interface{}) error {
	f, ok := format.(trace.Format)
	if !ok {
		return &UnsupportedFormatError{Format: format}
	}
	concrete, ok := sc.(SpanContext)
	if !ok {
		return fmt.Errorf("tracer: foreign SpanContext implementation")
	}
	return t.registry.Inject(f, concrete, carrier)
}

// Extract reads a SpanContext out of carrier through the codec registered
// for format.
func (t *Tracer) Extract(format interface{}, carrier interface{}) (trace.SpanContext, error) {
	f, ok := format.(trace.Format)
	if !ok {
		return nil, &UnsupportedFormatError{Format: format}
	}
	sc, err := t.registry.Extract(f, carrier)
	if err != nil {
		switch err.(type) {
		case *MalformedStateError, *EmptyStateError:
			// Both decode-failure kinds are counted identically
			// (spec.md §7); UnsupportedFormatError is a programmer error
			// and is surfaced without being counted.
			t.metricsSink.decodingErrors.Inc(1)
		}
		return nil, err
	}
	return sc, nil
}

// Close closes the reporter then the sampler, in that order (spec.md §5
// "Cancellation").
func (t *Tracer) Close() error {
	t.reporter.Close()
	t.sampler.Close()
	return nil
}

// StartSpan implements the builder algorithm in spec.md §4.4.
func (t *Tracer) StartSpan(operationName string, opts ...trace.StartSpanOption) trace.Span {
	var cfg trace.StartSpanConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	preferredParent, hasParent := t.selectPreferredParent(cfg.References)
	mergedBaggage := t.mergeReferenceBaggage(cfg.References)

	var (
		ctx          SpanContext
		isRoot       bool
		isDebugStart bool
		debugID      string
		samplerTags  map[string]interface{}
	)

	switch {
	case !hasParent:
		isRoot = true
		var status SamplingStatus
		ctx, status = t.newRootContext(operationName, true)
		samplerTags = status.Tags
	case preferredParent.IsDebugIDContainerOnly():
		isRoot = true
		isDebugStart = true
		debugID = preferredParent.DebugID()
		ctx, _ = t.newRootContext(operationName, false)
		ctx.flags = flagSampled | flagDebug
	default:
		spanID := t.ids.randUint64()
		if kind, ok := cfg.Tags[ext.SpanKind]; ok && kind == ext.SpanKindServer && t.zipkinSharedRPCSpan {
			// Preserve the RPC-server shared-span behavior under the flag:
			// two spans end up sharing (traceId, spanId) in the collector.
			// This is intentionally NOT extended to other span kinds
			// (spec.md §9 Open Question).
			spanID = preferredParent.spanID
		}
		ctx = newChildSpanContext(preferredParent, spanID)
	}

	ctx = ctx.mergeBaggage(mergedBaggage)

	span := &Span{
		tracer:        t,
		operationName: operationName,
		tags:          map[string]interface{}{},
		references:    cfg.References,
		context:       ctx,
	}
	if isDebugStart {
		span.tags[ext.DebugID] = debugID
	}
	for k, v := range samplerTags {
		span.tags[k] = v
	}

	startMicros := cfg.StartTime
	if startMicros == 0 {
		if t.cfgClock.IsMicrosAccurate() {
			startMicros = t.cfgClock.CurrentTimeMicros()
		} else {
			span.useTicks = true
			span.startTicks = t.cfgClock.CurrentNanoTicks()
			startMicros = t.cfgClock.CurrentTimeMicros()
		}
	}
	span.startMicros = startMicros

	for k, v := range cfg.Tags {
		span.tags[k] = normalizeTagValue(v)
	}

	t.recordStartMetrics(isRoot, ctx.IsSampled())

	return span
}

func (t *Tracer) selectPreferredParent(refs []trace.Reference) (SpanContext, bool) {
	var followsFrom *SpanContext
	for i := range refs {
		sc, ok := refs[i].Context.(SpanContext)
		if !ok {
			continue
		}
		if refs[i].Kind == trace.ChildOf {
			return sc, true
		}
		if followsFrom == nil {
			c := sc
			followsFrom = &c
		}
	}
	if followsFrom != nil {
		return *followsFrom, true
	}
	return SpanContext{}, false
}

func (t *Tracer) mergeReferenceBaggage(refs []trace.Reference) SpanContext {
	var merged SpanContext
	for i := range refs {
		sc, ok := refs[i].Context.(SpanContext)
		if !ok {
			continue
		}
		merged = merged.mergeBaggage(sc)
	}
	return merged
}

func (t *Tracer) newRootContext(operationName string, consultSampler bool) (SpanContext, SamplingStatus) {
	low := t.ids.randUint64()
	var high uint64
	if t.gen128Bit {
		high = t.ids.traceIDHigh128()
	}
	spanID := low
	var flags byte
	var status SamplingStatus
	if consultSampler {
		status = t.sampler.Sample(operationName, low)
		if status.Sampled {
			flags = flagSampled
		}
	}
	return newRootSpanContext(high, low, spanID, flags), status
}

func (t *Tracer) recordStartMetrics(isRoot, sampled bool) {
	m := t.metricsSink
	m.spansStartedLifecycle.Inc(1)
	if sampled {
		m.spansSamplingSampled.Inc(1)
	} else {
		m.spansSamplingUnsampled.Inc(1)
	}
	if isRoot {
		if sampled {
			m.tracesStartedSampled.Inc(1)
		} else {
			m.tracesStartedUnsampled.Inc(1)
		}
		return
	}
	if sampled {
		m.tracesJoinedSampled.Inc(1)
	} else {
		m.tracesJoinedUnsampled.Inc(1)
	}
}
