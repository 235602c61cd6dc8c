// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"sort"
	"sync"

	"github.com/flowtrace/client-go/trace"
)

// InMemoryMetricsFactory records every counter/gauge value in memory, keyed
// by "name|k1=v1|k2=v2" (tag keys sorted). Used by tests that assert on emitted metrics
// (spec.md §8 concrete scenarios reference counters like
// reporter-spans{result=dropped} and decoding-errors directly).
type InMemoryMetricsFactory struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]float64
}

func NewInMemoryMetricsFactory() *InMemoryMetricsFactory {
	return &InMemoryMetricsFactory{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
	}
}

// metricKey renders a stable string key for name+tags. Tag keys are sorted
// before joining so the same tag set always produces the same key,
// regardless of Go's randomized map iteration order.
func metricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := name
	for _, k := range keys {
		key += "|" + k + "=" + tags[k]
	}
	return key
}

type inMemoryCounter struct {
	f   *InMemoryMetricsFactory
	key string
}

func (c *inMemoryCounter) Inc(delta int64) {
	c.f.mu.Lock()
	c.f.counters[c.key] += delta
	c.f.mu.Unlock()
}

type inMemoryGauge struct {
	f   *InMemoryMetricsFactory
	key string
}

func (g *inMemoryGauge) Update(value float64) {
	g.f.mu.Lock()
	g.f.gauges[g.key] = value
	g.f.mu.Unlock()
}

type inMemoryTimer struct{}

func (inMemoryTimer) Record(int64) {}

func (f *InMemoryMetricsFactory) Counter(name string, tags map[string]string) trace.Counter {
	return &inMemoryCounter{f: f, key: metricKey(name, tags)}
}

func (f *InMemoryMetricsFactory) Gauge(name string, tags map[string]string) trace.Gauge {
	return &inMemoryGauge{f: f, key: metricKey(name, tags)}
}

func (f *InMemoryMetricsFactory) Timer(string, map[string]string) trace.Timer {
	return inMemoryTimer{}
}

// CounterValue returns the accumulated value for name+tags (0 if unseen).
func (f *InMemoryMetricsFactory) CounterValue(name string, tags map[string]string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[metricKey(name, tags)]
}

// GaugeValue returns the last reported value for name+tags (0 if unseen).
func (f *InMemoryMetricsFactory) GaugeValue(name string, tags map[string]string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gauges[metricKey(name, tags)]
}
