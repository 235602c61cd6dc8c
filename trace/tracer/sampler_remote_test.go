// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu   sync.Mutex
	body []byte
	err  error
}

func (f *fakeFetcher) set(body []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

func (f *fakeFetcher) Fetch(string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body, f.err
}

func TestRemoteSamplerUsesInitialUntilFirstPoll(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.set(nil, fmt.Errorf("endpoint unreachable"))
	rs := NewRemoteSampler("svc", fetcher, time.Hour, NewConstSampler(true), nil)
	defer rs.Close()

	assert.True(t, rs.Sample("op", 0).Sampled, "initial sampler must be used until a poll succeeds")
}

func TestRemoteSamplerAppliesProbabilisticStrategy(t *testing.T) {
	fetcher := &fakeFetcher{}
	rs := NewRemoteSampler("svc", fetcher, time.Hour, NewConstSampler(false), nil)
	defer rs.Close()

	fetcher.set([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":1}}`), nil)
	rs.refresh()

	assert.True(t, rs.Sample("op", 0).Sampled)
}

func TestRemoteSamplerAppliesRateLimitingStrategy(t *testing.T) {
	fetcher := &fakeFetcher{}
	rs := NewRemoteSampler("svc", fetcher, time.Hour, NewConstSampler(false), nil)
	defer rs.Close()

	fetcher.set([]byte(`{"strategyType":"RATE_LIMITING","rateLimitingSampling":{"maxTracesPerSecond":5}}`), nil)
	rs.refresh()

	_, ok := rs.currentSampler().(*RateLimitingSampler)
	assert.True(t, ok)
}

func TestRemoteSamplerAppliesPerOperationStrategyAndUpdatesInPlace(t *testing.T) {
	fetcher := &fakeFetcher{}
	rs := NewRemoteSampler("svc", fetcher, time.Hour, NewConstSampler(false), nil)
	defer rs.Close()

	fetcher.set([]byte(`{
		"strategyType":"",
		"operationSampling":{
			"defaultSamplingProbability":0,
			"defaultLowerBoundTracesPerSecond":0,
			"perOperationStrategies":[{"operation":"op","probabilisticSampling":{"samplingRate":1}}]
		}
	}`), nil)
	rs.refresh()

	first, ok := rs.currentSampler().(*PerOperationSampler)
	require.True(t, ok)
	assert.True(t, rs.Sample("op", 0).Sampled)

	// A second poll with the same strategy type must mutate the existing
	// PerOperationSampler in place rather than replacing it, so its identity
	// (and any accrued rate-limiter credit) survives the refresh.
	rs.refresh()
	second, ok := rs.currentSampler().(*PerOperationSampler)
	require.True(t, ok)
	assert.Same(t, first, second)
}

func TestRemoteSamplerKeepsCurrentOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.set([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":1}}`), nil)
	rs := NewRemoteSampler("svc", fetcher, time.Hour, NewConstSampler(false), nil)
	defer rs.Close()
	rs.refresh()
	require.True(t, rs.Sample("op", 0).Sampled)

	fetcher.set(nil, fmt.Errorf("network down"))
	rs.refresh()

	assert.True(t, rs.Sample("op", 0).Sampled, "a failed poll must not discard the last good sampler")
}

func TestRemoteSamplerKeepsCurrentOnMalformedJSON(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.set([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":1}}`), nil)
	rs := NewRemoteSampler("svc", fetcher, time.Hour, NewConstSampler(false), nil)
	defer rs.Close()
	rs.refresh()

	fetcher.set([]byte(`not json`), nil)
	rs.refresh()

	assert.True(t, rs.Sample("op", 0).Sampled)
}

func TestRemoteSamplerClosePropagatesToInnerSampler(t *testing.T) {
	fetcher := &fakeFetcher{}
	inner := NewConstSampler(true)
	rs := NewRemoteSampler("svc", fetcher, time.Hour, inner, nil)
	rs.Close() // must not hang or panic; stops the poll loop and closes inner
}

func TestRemoteSamplerBackgroundPolling(t *testing.T) {
	fetcher := &fakeFetcher{}
	fetcher.set([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":0}}`), nil)
	rs := NewRemoteSampler("svc", fetcher, 5*time.Millisecond, NewConstSampler(false), nil)
	defer rs.Close()

	fetcher.set([]byte(`{"strategyType":"PROBABILISTIC","probabilisticSampling":{"samplingRate":1}}`), nil)

	require.Eventually(t, func() bool {
		return rs.Sample("op", 0).Sampled
	}, time.Second, 5*time.Millisecond, "the background poll loop must pick up the new strategy")
}
