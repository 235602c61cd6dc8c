// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import "github.com/flowtrace/client-go/trace"

// Metrics holds every counter/gauge this core emits. Counters are populated
// by walking a static descriptor table rather than by reflection-based
// discovery (SPEC_FULL.md §9 DESIGN NOTES: the Java source's reflective
// metrics declaration becomes an explicit list here); the one gauge,
// reporter-queue, is created directly.
type Metrics struct {
	tracesStartedSampled   trace.Counter // traces{state=started,sampled=y}
	tracesStartedUnsampled trace.Counter // traces{state=started,sampled=n}
	tracesJoinedSampled    trace.Counter // traces{state=joined,sampled=y}
	tracesJoinedUnsampled  trace.Counter // traces{state=joined,sampled=n}

	spansStartedLifecycle  trace.Counter // spans{state=started,group=lifecycle}
	spansFinishedLifecycle trace.Counter // spans{state=finished,group=lifecycle}
	spansSamplingSampled   trace.Counter // spans{group=sampling,sampled=y}
	spansSamplingUnsampled trace.Counter // spans{group=sampling,sampled=n}

	samplerRetrieved      trace.Counter // sampler{state=retrieved}
	samplerUpdated        trace.Counter // sampler{state=updated}
	samplerQueryFailure   trace.Counter // sampler{state=failure,phase=query}
	samplerParsingFailure trace.Counter // sampler{state=failure,phase=parsing}

	reporterSuccess trace.Counter // reporter-spans{result=ok}
	reporterFailure trace.Counter // reporter-spans{result=err}
	reporterDropped trace.Counter // reporter-spans{result=dropped}
	reporterQueue   trace.Gauge   // reporter-queue
	decodingErrors  trace.Counter // decoding-errors
}

// metricDescriptor is one row of the static registration table.
type metricDescriptor struct {
	field *trace.Counter
	gauge *trace.Gauge
	name  string
	tags  map[string]string
}

// newMetrics materializes every counter/gauge against factory. factory must
// not be nil; callers without a real metrics backend pass NullMetricsFactory.
func newMetrics(factory trace.MetricsFactory) *Metrics {
	m := &Metrics{}
	counters := []metricDescriptor{
		{field: &m.tracesStartedSampled, name: "traces", tags: map[string]string{"state": "started", "sampled": "y"}},
		{field: &m.tracesStartedUnsampled, name: "traces", tags: map[string]string{"state": "started", "sampled": "n"}},
		{field: &m.tracesJoinedSampled, name: "traces", tags: map[string]string{"state": "joined", "sampled": "y"}},
		{field: &m.tracesJoinedUnsampled, name: "traces", tags: map[string]string{"state": "joined", "sampled": "n"}},
		{field: &m.spansStartedLifecycle, name: "spans", tags: map[string]string{"state": "started", "group": "lifecycle"}},
		{field: &m.spansFinishedLifecycle, name: "spans", tags: map[string]string{"state": "finished", "group": "lifecycle"}},
		{field: &m.spansSamplingSampled, name: "spans", tags: map[string]string{"group": "sampling", "sampled": "y"}},
		{field: &m.spansSamplingUnsampled, name: "spans", tags: map[string]string{"group": "sampling", "sampled": "n"}},
		{field: &m.samplerRetrieved, name: "sampler", tags: map[string]string{"state": "retrieved"}},
		{field: &m.samplerUpdated, name: "sampler", tags: map[string]string{"state": "updated"}},
		{field: &m.samplerQueryFailure, name: "sampler", tags: map[string]string{"state": "failure", "phase": "query"}},
		{field: &m.samplerParsingFailure, name: "sampler", tags: map[string]string{"state": "failure", "phase": "parsing"}},
		{field: &m.reporterSuccess, name: "reporter-spans", tags: map[string]string{"result": "ok"}},
		{field: &m.reporterFailure, name: "reporter-spans", tags: map[string]string{"result": "err"}},
		{field: &m.reporterDropped, name: "reporter-spans", tags: map[string]string{"result": "dropped"}},
		{field: &m.decodingErrors, name: "decoding-errors", tags: nil},
	}
	for _, d := range counters {
		*d.field = factory.Counter(d.name, d.tags)
	}
	m.reporterQueue = factory.Gauge("reporter-queue", nil)
	return m
}
