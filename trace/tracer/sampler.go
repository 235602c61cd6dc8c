// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/flowtrace/client-go/trace/ext"
)

// SamplingStatus is the result of one call to Sampler.Sample (spec.md §3).
type SamplingStatus struct {
	Sampled bool
	Tags    map[string]interface{}
}

// Sampler is the pluggable decision function described in spec.md §4.2. All
// variants are safe for concurrent use without external synchronization.
type Sampler interface {
	Sample(operationName string, traceID uint64) SamplingStatus
	Close()
	// Equal reports whether other is of the same variant with identical
	// parameters. RemoteSampler uses this to decide whether a freshly
	// polled strategy actually changed anything (spec.md §4.2 "Equality").
	Equal(other Sampler) bool
}

// ConstSampler always returns the same decision.
type ConstSampler struct {
	Decision bool
}

func NewConstSampler(decision bool) *ConstSampler { return &ConstSampler{Decision: decision} }

func (s *ConstSampler) Sample(string, uint64) SamplingStatus {
	return SamplingStatus{
		Sampled: s.Decision,
		Tags: map[string]interface{}{
			ext.SamplerType:  ext.SamplerTypeConst,
			ext.SamplerParam: s.Decision,
		},
	}
}

func (s *ConstSampler) Close() {}

func (s *ConstSampler) Equal(other Sampler) bool {
	o, ok := other.(*ConstSampler)
	return ok && o.Decision == s.Decision
}

// ProbabilisticSampler samples iff traceID < threshold, where
// threshold = rate * 2^63 rounded to an integer (spec.md §4.2).
type ProbabilisticSampler struct {
	samplingRate float64
	threshold    uint64
}

// NewProbabilisticSampler constructs a sampler for samplingRate in [0, 1].
// Rates outside the range are clamped, matching the teacher's defensive
// construction style for percentage-shaped parameters.
func NewProbabilisticSampler(samplingRate float64) *ProbabilisticSampler {
	if samplingRate < 0 {
		samplingRate = 0
	} else if samplingRate > 1 {
		samplingRate = 1
	}
	return &ProbabilisticSampler{
		samplingRate: samplingRate,
		threshold:    uint64(samplingRate * (1 << 63)),
	}
}

func (s *ProbabilisticSampler) SamplingRate() float64 { return s.samplingRate }

func (s *ProbabilisticSampler) Sample(_ string, traceID uint64) SamplingStatus {
	// Compare against the low 63 bits, matching the trace id's usable
	// random range (spec.md §4.2).
	sampled := (traceID & 0x7fffffffffffffff) < s.threshold
	return SamplingStatus{
		Sampled: sampled,
		Tags: map[string]interface{}{
			ext.SamplerType:  ext.SamplerTypeProbabilistic,
			ext.SamplerParam: s.samplingRate,
		},
	}
}

func (s *ProbabilisticSampler) Close() {}

func (s *ProbabilisticSampler) Equal(other Sampler) bool {
	o, ok := other.(*ProbabilisticSampler)
	return ok && o.samplingRate == s.samplingRate
}

// RateLimitingSampler samples at most maxTracesPerSecond, with capacity
// max(1, maxTracesPerSecond) and fractional sub-second credit carry
// (spec.md §4.2). It wraps golang.org/x/time/rate.Limiter, which already
// implements fractional-token accrual natively -- the same package the
// teacher itself imports for rate-based sampling (DataDog-dd-trace-go:
// ddtrace/tracer/sampler_test.go).
type RateLimitingSampler struct {
	maxTracesPerSecond float64
	limiter            *rate.Limiter
}

func NewRateLimitingSampler(maxTracesPerSecond float64) *RateLimitingSampler {
	capacity := math.Max(1, maxTracesPerSecond)
	return &RateLimitingSampler{
		maxTracesPerSecond: maxTracesPerSecond,
		limiter:            rate.NewLimiter(rate.Limit(maxTracesPerSecond), int(math.Ceil(capacity))),
	}
}

func (s *RateLimitingSampler) Sample(string, uint64) SamplingStatus {
	return SamplingStatus{
		Sampled: s.limiter.Allow(),
		Tags: map[string]interface{}{
			ext.SamplerType:  ext.SamplerTypeRateLimiting,
			ext.SamplerParam: s.maxTracesPerSecond,
		},
	}
}

func (s *RateLimitingSampler) Close() {}

func (s *RateLimitingSampler) Equal(other Sampler) bool {
	o, ok := other.(*RateLimitingSampler)
	return ok && o.maxTracesPerSecond == s.maxTracesPerSecond
}

// GuaranteedThroughputProbabilisticSampler composes a ProbabilisticSampler
// and a RateLimitingSampler: sampled iff either votes yes, with the
// probabilistic sampler's tags winning ties (spec.md §4.2).
type GuaranteedThroughputProbabilisticSampler struct {
	probabilistic *ProbabilisticSampler
	lowerBound    *RateLimitingSampler
}

func NewGuaranteedThroughputProbabilisticSampler(lowerBound, samplingRate float64) *GuaranteedThroughputProbabilisticSampler {
	return &GuaranteedThroughputProbabilisticSampler{
		probabilistic: NewProbabilisticSampler(samplingRate),
		lowerBound:    NewRateLimitingSampler(lowerBound),
	}
}

func (s *GuaranteedThroughputProbabilisticSampler) Sample(op string, traceID uint64) SamplingStatus {
	probStatus := s.probabilistic.Sample(op, traceID)
	if probStatus.Sampled {
		return probStatus
	}
	lowerStatus := s.lowerBound.Sample(op, traceID)
	lowerStatus.Tags = map[string]interface{}{
		ext.SamplerType:  ext.SamplerTypeLowerBound,
		ext.SamplerParam: s.lowerBound.maxTracesPerSecond,
	}
	return lowerStatus
}

func (s *GuaranteedThroughputProbabilisticSampler) Close() {}

func (s *GuaranteedThroughputProbabilisticSampler) Equal(other Sampler) bool {
	o, ok := other.(*GuaranteedThroughputProbabilisticSampler)
	return ok && o.probabilistic.Equal(s.probabilistic) && o.lowerBound.Equal(s.lowerBound)
}

// update swaps in new parameters in place, used by PerOperationSampler when
// a remote refresh changes an existing operation's strategy without
// replacing the map entry (avoids losing the rate limiter's accrued credit).
func (s *GuaranteedThroughputProbabilisticSampler) update(lowerBound, samplingRate float64) {
	if s.probabilistic.samplingRate != samplingRate {
		s.probabilistic = NewProbabilisticSampler(samplingRate)
	}
	if s.lowerBound.maxTracesPerSecond != lowerBound {
		s.lowerBound = NewRateLimitingSampler(lowerBound)
	}
}

// PerOperationSampler (the "adaptive" sampler, spec.md §4.2) holds a
// per-operation map of GuaranteedThroughputProbabilisticSamplers, falling
// back to a default probabilistic sampler once the map hits maxOperations.
type PerOperationSampler struct {
	mu               sync.Mutex
	samplers         map[string]*GuaranteedThroughputProbabilisticSampler
	defaultSampler   *ProbabilisticSampler
	lowerBound       float64
	maxOperations    int
}

type PerOperationStrategy struct {
	Operation    string
	SamplingRate float64
}

type PerOperationSamplerParams struct {
	DefaultSamplingRate     float64
	DefaultLowerBoundRate   float64
	MaxOperations           int
	PerOperationStrategies  []PerOperationStrategy
}

func NewPerOperationSampler(p PerOperationSamplerParams) *PerOperationSampler {
	if p.MaxOperations <= 0 {
		p.MaxOperations = 2000
	}
	s := &PerOperationSampler{
		samplers:       make(map[string]*GuaranteedThroughputProbabilisticSampler, len(p.PerOperationStrategies)),
		defaultSampler: NewProbabilisticSampler(p.DefaultSamplingRate),
		lowerBound:     p.DefaultLowerBoundRate,
		maxOperations:  p.MaxOperations,
	}
	for _, st := range p.PerOperationStrategies {
		s.samplers[st.Operation] = NewGuaranteedThroughputProbabilisticSampler(p.DefaultLowerBoundRate, st.SamplingRate)
	}
	return s
}

func (s *PerOperationSampler) Sample(op string, traceID uint64) SamplingStatus {
	s.mu.Lock()
	sampler, ok := s.samplers[op]
	if !ok {
		if len(s.samplers) >= s.maxOperations {
			s.mu.Unlock()
			return s.defaultSampler.Sample(op, traceID)
		}
		sampler = NewGuaranteedThroughputProbabilisticSampler(s.lowerBound, s.defaultSampler.SamplingRate())
		s.samplers[op] = sampler
	}
	s.mu.Unlock()
	return sampler.Sample(op, traceID)
}

func (s *PerOperationSampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sampler := range s.samplers {
		sampler.Close()
	}
}

func (s *PerOperationSampler) Equal(Sampler) bool {
	// RemoteSampler updates an existing PerOperationSampler in place and
	// recognizes that case by identity before asking Equal, so fine-grained
	// equality isn't needed; a PerOperationSampler never reports equal.
	return false
}

// update applies a freshly polled per-operation strategy set in place,
// serialized under the same mutex Sample takes (spec.md §4.2 "Mutation of
// the mapping is serialized").
func (s *PerOperationSampler) update(p PerOperationSamplerParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lowerBound = p.DefaultLowerBoundRate
	if p.MaxOperations > 0 {
		s.maxOperations = p.MaxOperations
	}
	if s.defaultSampler.samplingRate != p.DefaultSamplingRate {
		s.defaultSampler = NewProbabilisticSampler(p.DefaultSamplingRate)
	}
	seen := make(map[string]bool, len(p.PerOperationStrategies))
	for _, st := range p.PerOperationStrategies {
		seen[st.Operation] = true
		if existing, ok := s.samplers[st.Operation]; ok {
			existing.update(p.DefaultLowerBoundRate, st.SamplingRate)
			continue
		}
		if len(s.samplers) >= s.maxOperations {
			continue
		}
		s.samplers[st.Operation] = NewGuaranteedThroughputProbabilisticSampler(p.DefaultLowerBoundRate, st.SamplingRate)
	}
}
