// Licensed under the Apache License, Version 2.0 (the "License").
// See the LICENSE file in the repository root for details.

package tracer

import (
	"expvar"
	"sync"

	"github.com/flowtrace/client-go/trace"
)

// ExpvarMetricsFactory publishes every counter/gauge under expvar, so a
// process wired with it exposes its tracing internals on /debug/vars with no
// extra dependency. Used by the example CLI (cmd/tracerdemo) as a
// zero-configuration MetricsFactory; production deployments should prefer
// StatsdMetricsFactory.
type ExpvarMetricsFactory struct {
	mu    sync.Mutex
	ints  map[string]*expvar.Int
	floats map[string]*expvar.Float
}

func NewExpvarMetricsFactory() *ExpvarMetricsFactory {
	return &ExpvarMetricsFactory{
		ints:   make(map[string]*expvar.Int),
		floats: make(map[string]*expvar.Float),
	}
}

type expvarCounter struct{ v *expvar.Int }

func (c expvarCounter) Inc(delta int64) { c.v.Add(delta) }

type expvarGauge struct{ v *expvar.Float }

func (g expvarGauge) Update(value float64) { g.v.Set(value) }

type expvarTimer struct{}

func (expvarTimer) Record(int64) {}

func (f *ExpvarMetricsFactory) Counter(name string, tags map[string]string) trace.Counter {
	key := metricKey(name, tags)
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.ints[key]
	if !ok {
		v = new(expvar.Int)
		f.ints[key] = v
		expvar.Publish("jaeger_tracer_"+key, v)
	}
	return expvarCounter{v: v}
}

func (f *ExpvarMetricsFactory) Gauge(name string, tags map[string]string) trace.Gauge {
	key := metricKey(name, tags)
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.floats[key]
	if !ok {
		v = new(expvar.Float)
		f.floats[key] = v
		expvar.Publish("jaeger_tracer_"+key, v)
	}
	return expvarGauge{v: v}
}

func (f *ExpvarMetricsFactory) Timer(string, map[string]string) trace.Timer {
	return expvarTimer{}
}
