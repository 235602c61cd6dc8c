// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowtrace/client-go/trace"
	"github.com/flowtrace/client-go/trace/ext"
)

func TestNewTracerRejectsEmptyServiceName(t *testing.T) {
	_, err := NewTracer("", NewConstSampler(true), NewInMemoryReporter())
	require.Error(t, err)
}

func TestStartSpanRootHasNoParent(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	span := tr.StartSpan("root").(*Span)
	ctx := span.spanContext()
	assert.Equal(t, uint64(0), ctx.ParentID())
	assert.True(t, ctx.IsSampled())
}

func TestStartSpanChildOfInheritsTraceIdentity(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	root := tr.StartSpan("root").(*Span)
	child := tr.StartSpan("child", ChildOf(root.Context())).(*Span)

	assert.Equal(t, root.spanContext().TraceIDLow(), child.spanContext().TraceIDLow())
	assert.Equal(t, root.spanContext().SpanID(), child.spanContext().ParentID())
	assert.NotEqual(t, root.spanContext().SpanID(), child.spanContext().SpanID())
}

func TestStartSpanChildOfPreferredOverFollowsFrom(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	causal := tr.StartSpan("causal").(*Span)
	trueParent := tr.StartSpan("parent").(*Span)

	child := tr.StartSpan("child",
		FollowsFrom(causal.Context()),
		ChildOf(trueParent.Context()),
	).(*Span)

	assert.Equal(t, trueParent.spanContext().SpanID(), child.spanContext().ParentID())
}

func TestStartSpanFollowsFromAloneBecomesParent(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	causal := tr.StartSpan("causal").(*Span)
	child := tr.StartSpan("child", FollowsFrom(causal.Context())).(*Span)

	assert.Equal(t, causal.spanContext().SpanID(), child.spanContext().ParentID())
}

func TestStartSpanMergesBaggageFromReferences(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	parent := tr.StartSpan("parent").(*Span)
	parent.SetBaggageItem("k", "v")

	child := tr.StartSpan("child", ChildOf(parent.Context())).(*Span)
	assert.Equal(t, "v", child.BaggageItem("k"))
}

func TestStartSpanFromDebugIDContainerForcesSampledAndTagsSpan(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(false)) // would normally never sample

	debugParent := newDebugIDContainer("debug-xyz")
	span := tr.StartSpan("root", ChildOf(debugParent)).(*Span)

	ctx := span.spanContext()
	assert.True(t, ctx.IsSampled())
	assert.True(t, ctx.IsDebug())
	assert.Equal(t, "debug-xyz", span.Tags()[ext.DebugID])
	assert.Equal(t, uint64(0), ctx.ParentID(), "a debug-id-only parent carries no real identity to inherit")
}

func TestStartSpanZipkinSharedRPCSpan(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true), WithZipkinSharedRPCSpan())

	clientSpan := tr.StartSpan("rpc", WithTag(ext.SpanKind, ext.SpanKindClient)).(*Span)
	serverSpan := tr.StartSpan("rpc",
		ChildOf(clientSpan.Context()),
		WithTag(ext.SpanKind, ext.SpanKindServer),
	).(*Span)

	assert.Equal(t, clientSpan.spanContext().SpanID(), serverSpan.spanContext().SpanID(),
		"span.kind=server under the shared-RPC-span flag reuses the parent's span id")
}

func TestStartSpanZipkinSharedRPCSpanDisabledByDefault(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	clientSpan := tr.StartSpan("rpc", WithTag(ext.SpanKind, ext.SpanKindClient)).(*Span)
	serverSpan := tr.StartSpan("rpc",
		ChildOf(clientSpan.Context()),
		WithTag(ext.SpanKind, ext.SpanKindServer),
	).(*Span)

	assert.NotEqual(t, clientSpan.spanContext().SpanID(), serverSpan.spanContext().SpanID())
}

func TestStartSpanRecordsTraceAndSpanLifecycleMetrics(t *testing.T) {
	f := NewInMemoryMetricsFactory()
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true), WithMetrics(f))

	root := tr.StartSpan("root").(*Span)
	tr.StartSpan("child", ChildOf(root.Context()))

	assert.Equal(t, int64(1), f.CounterValue("traces", map[string]string{"state": "started", "sampled": "y"}))
	assert.Equal(t, int64(1), f.CounterValue("traces", map[string]string{"state": "joined", "sampled": "y"}))
	assert.Equal(t, int64(2), f.CounterValue("spans", map[string]string{"state": "started", "group": "lifecycle"}))
}

func TestTracerInjectExtractRoundTrip(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewConstSampler(true))

	span := tr.StartSpan("op")
	carrier := trace.TextMapCarrier{}
	require.NoError(t, tr.Inject(span.Context(), trace.FormatTextMap, carrier))

	extracted, err := tr.Extract(trace.FormatTextMap, carrier)
	require.NoError(t, err)
	assert.Equal(t, span.Context().SpanID(), extracted.SpanID())
}

func TestTracerExtractCountsDecodingErrors(t *testing.T) {
	f := NewInMemoryMetricsFactory()
	tr := newTestTracer(t, NewInMemoryReporter(), NewConstSampler(true))
	tr.metricsSink = newMetrics(f)

	_, err := tr.Extract(trace.FormatTextMap, trace.TextMapCarrier{DefaultStateHeaderKey: "garbage"})
	require.Error(t, err)
	assert.Equal(t, int64(1), f.CounterValue("decoding-errors", nil))

	_, err = tr.Extract(trace.FormatTextMap, trace.TextMapCarrier{})
	require.Error(t, err)
	assert.Equal(t, int64(2), f.CounterValue("decoding-errors", nil))
}

func TestTracerExtractUnsupportedFormatNotCountedAsDecodingError(t *testing.T) {
	f := NewInMemoryMetricsFactory()
	tr := newTestTracer(t, NewInMemoryReporter(), NewConstSampler(true))
	tr.metricsSink = newMetrics(f)

	_, err := tr.Extract(trace.Format("nonexistent"), trace.TextMapCarrier{})
	require.Error(t, err)
	_, ok := err.(*UnsupportedFormatError)
	assert.True(t, ok)
	assert.Equal(t, int64(0), f.CounterValue("decoding-errors", nil))
}

func TestTracerCloseReturnsNoError(t *testing.T) {
	reporter := NewInMemoryReporter()
	sampler := NewConstSampler(true)
	tr := newTestTracer(t, reporter, sampler)
	assert.NoError(t, tr.Close())
}

func TestStartSpanSamplesPerOperationByOperationNameNotServiceName(t *testing.T) {
	reporter := NewInMemoryReporter()
	sampler := NewPerOperationSampler(PerOperationSamplerParams{
		DefaultSamplingRate:   0,
		DefaultLowerBoundRate: 0,
		PerOperationStrategies: []PerOperationStrategy{
			{Operation: "hot-op", SamplingRate: 1},
		},
	})
	tr := newTestTracer(t, reporter, sampler)

	hot := tr.StartSpan("hot-op").(*Span)
	cold := tr.StartSpan("cold-op").(*Span)

	assert.True(t, hot.spanContext().IsSampled(), "operation with a 100%% per-operation strategy must be sampled")
	assert.False(t, cold.spanContext().IsSampled(), "unrelated operation must fall back to the 0%% default, not the hot operation's strategy")
}

func TestStartSpanRecordsSamplerTagsOnRootSpan(t *testing.T) {
	reporter := NewInMemoryReporter()
	tr := newTestTracer(t, reporter, NewProbabilisticSampler(1))

	root := tr.StartSpan("root").(*Span)
	tags := root.Tags()
	assert.Equal(t, ext.SamplerTypeProbabilistic, tags[ext.SamplerType])
	assert.Equal(t, 1.0, tags[ext.SamplerParam])
}

func TestTracerProcessTagsReturnsCopy(t *testing.T) {
	tr, err := NewTracer("svc", NewConstSampler(true), NewInMemoryReporter(),
		WithProcessTags(map[string]interface{}{"jaeger.version": "test"}))
	require.NoError(t, err)

	tags := tr.ProcessTags()
	tags["mutated"] = true
	assert.NotContains(t, tr.ProcessTags(), "mutated")
	assert.Equal(t, "test", tr.ProcessTags()["jaeger.version"])
}
