// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

// Package ext holds the tag and sampler-type string constants used across
// the tracing core, mirroring the teacher's ddtrace/ext package.
package ext

// Standard span tags.
const (
	SpanKind       = "span.kind"
	SpanKindServer = "server"
	SpanKindClient = "client"

	Error = "error"

	// DebugID names the tag recorded on the first span of a trace started
	// from a debug-id-only parent (spec.md §4.1).
	DebugID = "jaeger-debug-id"
)

// Sampler type tags, recorded in SamplingStatus.Tags (spec.md §3, §4.2).
const (
	SamplerType = "sampler.type"
	SamplerParam = "sampler.param"

	SamplerTypeConst        = "const"
	SamplerTypeProbabilistic = "probabilistic"
	SamplerTypeRateLimiting  = "ratelimiting"
	SamplerTypeLowerBound    = "lowerbound"
	SamplerTypeRemote        = "remote"
)
