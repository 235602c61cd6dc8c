// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/flowtrace/client-go/trace"
)

const defaultPollingInterval = 60 * time.Second

// TracerOption configures a Tracer at construction (spec.md §6 "builder with
// the recognized options").
type TracerOption func(*Tracer)

// WithClock overrides the default SystemClock.
func WithClock(c trace.Clock) TracerOption {
	return func(t *Tracer) { t.cfgClock = c }
}

// WithMetrics installs a MetricsFactory; without this option every metric is
// discarded via NullMetricsFactory.
func WithMetrics(f trace.MetricsFactory) TracerOption {
	return func(t *Tracer) { t.metricsSink = newMetrics(f) }
}

// WithProcessTags attaches process-level tags (e.g. jaeger.version,
// jaeger.hostname, ip) recorded on every span's originating process.
func WithProcessTags(tags map[string]interface{}) TracerOption {
	return func(t *Tracer) {
		for k, v := range tags {
			t.processTags[k] = v
		}
	}
}

// WithZipkinSharedRPCSpan enables the "zipkin shared RPC span" rule
// (spec.md §4.4 step 4, §9 Open Question): a child span tagged
// span.kind=server reuses its parent's span id instead of generating a new
// one.
func WithZipkinSharedRPCSpan() TracerOption {
	return func(t *Tracer) { t.zipkinSharedRPCSpan = true }
}

// WithGen128BitTraceID enables 128-bit trace ids (spec.md §4.5).
func WithGen128BitTraceID() TracerOption {
	return func(t *Tracer) { t.gen128Bit = true }
}

// WithPropagatorRegistry overrides the default registry (TextMap +
// HTTPHeaders). Mostly useful for tests that register a synthetic format.
func WithPropagatorRegistry(r *PropagatorRegistry) TracerOption {
	return func(t *Tracer) { t.registry = r }
}

// --- StartSpanOption constructors ---

// ChildOf records a ChildOf reference to parent (spec.md §4.4 step 2).
func ChildOf(parent trace.SpanContext) trace.StartSpanOption {
	return func(cfg *trace.StartSpanConfig) {
		cfg.References = append(cfg.References, trace.Reference{Kind: trace.ChildOf, Context: parent})
	}
}

// FollowsFrom records a FollowsFrom reference to parent.
func FollowsFrom(parent trace.SpanContext) trace.StartSpanOption {
	return func(cfg *trace.StartSpanConfig) {
		cfg.References = append(cfg.References, trace.Reference{Kind: trace.FollowsFrom, Context: parent})
	}
}

// WithStartTime supplies an explicit wall-clock start time in microseconds,
// bypassing the clock capability (spec.md §4.4 step 5).
func WithStartTime(micros int64) trace.StartSpanOption {
	return func(cfg *trace.StartSpanConfig) { cfg.StartTime = micros }
}

// WithTag sets a tag at span-creation time.
func WithTag(key string, value interface{}) trace.StartSpanOption {
	return func(cfg *trace.StartSpanConfig) {
		if cfg.Tags == nil {
			cfg.Tags = map[string]interface{}{}
		}
		cfg.Tags[key] = value
	}
}

// --- FinishOption constructors ---

// WithFinishTime supplies an explicit wall-clock finish time in microseconds.
func WithFinishTime(micros int64) trace.FinishOption {
	return func(cfg *trace.FinishConfig) { cfg.FinishTime = micros }
}

// WithError tags the span as failed with err's message.
func WithError(err error) trace.FinishOption {
	return func(cfg *trace.FinishConfig) { cfg.Error = err }
}

// FromEnv builds a TracerOption slice from the environment surface named in
// spec.md §6. It is additive sugar for callers, not part of the core
// construction contract -- the core itself never reads the environment
// (spec.md §1 "configuration loading from environment variables" is an
// out-of-scope collaborator concern).
func FromEnv() []TracerOption {
	var opts []TracerOption
	if v := os.Getenv("JAEGER_TAGS"); v != "" {
		tags := map[string]interface{}{}
		for _, kv := range strings.Split(v, ",") {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				tags[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
		}
		opts = append(opts, WithProcessTags(tags))
	}
	if v := os.Getenv("JAEGER_DISABLE_ZIPKIN_SHARED_RPC_SPAN"); v == "" {
		if b, err := strconv.ParseBool(os.Getenv("JAEGER_ZIPKIN_SHARED_RPC_SPAN")); err == nil && b {
			opts = append(opts, WithZipkinSharedRPCSpan())
		}
	}
	if b, err := strconv.ParseBool(os.Getenv("JAEGER_REPORTER_GEN128BIT")); err == nil && b {
		opts = append(opts, WithGen128BitTraceID())
	}
	return opts
}

// SamplerFromEnv builds a Sampler from JAEGER_SAMPLER_TYPE /
// JAEGER_SAMPLER_PARAM (spec.md §6), defaulting to a ConstSampler(true) when
// unset or unrecognized.
func SamplerFromEnv() Sampler {
	typ := os.Getenv("JAEGER_SAMPLER_TYPE")
	param, _ := strconv.ParseFloat(os.Getenv("JAEGER_SAMPLER_PARAM"), 64)
	switch typ {
	case "probabilistic":
		return NewProbabilisticSampler(param)
	case "ratelimiting":
		return NewRateLimitingSampler(param)
	case "const":
		return NewConstSampler(param != 0)
	case "remote", "":
		if typ == "" {
			return NewConstSampler(true)
		}
		host := os.Getenv("JAEGER_AGENT_HOST")
		if host == "" {
			host = "localhost:5778"
		}
		return NewRemoteSampler("", NewHTTPStrategyFetcher(host), defaultPollingInterval, NewProbabilisticSampler(0.001), nil)
	default:
		return NewConstSampler(true)
	}
}
